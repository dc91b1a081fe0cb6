package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vidgrabber/internal/core/domain"
)

const genericInternalMessage = "an internal error occurred while processing the request"

// Resolver messages are matched in order; the first group with a hit wins.
var resolverRules = []struct {
	kind    domain.ErrorKind
	needles []string
}{
	{domain.KindStreamsUnavailable, []string{"requested format is not available", "no video formats found"}},
	{domain.KindBadInput, []string{"unsupported url", "invalid url", "not a valid url", "is not a valid", "unsupported"}},
	{domain.KindForbidden, []string{"private video", "private", "forbidden", "http error 403", "sign in", "members-only", "members only", "age-restricted", "confirm your age"}},
	{domain.KindNotFound, []string{"not found", "http error 404", "video unavailable", "does not exist", "has been removed", "no longer available"}},
}

// Classify maps a pipeline failure onto the closed set of error kinds the
// request layer turns into status codes.
func Classify(err error) domain.Failure {
	if err == nil {
		return domain.Failure{Kind: domain.KindInternal, Message: genericInternalMessage}
	}

	if errors.Is(err, domain.ErrStreamsUnavailable) {
		return domain.Failure{
			Kind:    domain.KindStreamsUnavailable,
			Message: "separate video and audio streams are not available for this item",
			Err:     err,
		}
	}

	// Fetch errors carry signed CDN URLs; the detail is only logged.
	var fetchErr *domain.FetchError
	if errors.As(err, &fetchErr) {
		return domain.Failure{
			Kind:    domain.KindUpstreamFetchFailure,
			Message: fmt.Sprintf("fetching the %s stream failed", fetchErr.Kind),
			Err:     err,
		}
	}

	var muxErr *domain.MuxError
	if errors.As(err, &muxErr) {
		return domain.Failure{
			Kind:    domain.KindCombineFailure,
			Message: "combining streams failed: " + string(muxErr.Reason),
			Err:     err,
		}
	}

	var resolveErr *domain.ResolveError
	if errors.As(err, &resolveErr) {
		return classifyResolverMessage(resolveErr)
	}

	if errors.Is(err, context.Canceled) {
		return domain.Failure{Kind: domain.KindInternal, Message: "request cancelled", Err: err}
	}
	return domain.Failure{Kind: domain.KindInternal, Message: genericInternalMessage, Err: err}
}

func classifyResolverMessage(resolveErr *domain.ResolveError) domain.Failure {
	lower := strings.ToLower(resolveErr.Message)
	for _, rule := range resolverRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return domain.Failure{Kind: rule.kind, Message: resolveErr.Message, Err: resolveErr}
			}
		}
	}
	return domain.Failure{Kind: domain.KindInternal, Message: genericInternalMessage, Err: resolveErr}
}
