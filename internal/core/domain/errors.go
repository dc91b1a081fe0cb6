package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the closed set of outcomes the request layer maps to status codes.
type ErrorKind string

const (
	KindBadInput             ErrorKind = "bad_input"
	KindNotFound             ErrorKind = "not_found"
	KindForbidden            ErrorKind = "forbidden"
	KindStreamsUnavailable   ErrorKind = "streams_unavailable"
	KindUpstreamFetchFailure ErrorKind = "upstream_fetch_failure"
	KindCombineFailure       ErrorKind = "combine_failure"
	KindInternal             ErrorKind = "internal"
)

// ErrStreamsUnavailable marks a resolution without exactly one video and one audio stream.
var ErrStreamsUnavailable = errors.New("streams unavailable")

// ResolveError is a domain-level failure reported by the metadata resolver.
// Message is the resolver's own text and is classified by substring.
type ResolveError struct {
	Message string
	Err     error
}

func (e *ResolveError) Error() string {
	if e.Err != nil && e.Message == "" {
		return "resolve: " + e.Err.Error()
	}
	return "resolve: " + e.Message
}

func (e *ResolveError) Unwrap() error { return e.Err }

// FetchError reports a failed stream retrieval.
type FetchError struct {
	Kind StreamKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s stream: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MuxReason is the subtype of a combiner failure.
type MuxReason string

const (
	MuxExecutableUnavailable MuxReason = "executable unavailable"
	MuxMissingInput          MuxReason = "missing input"
	MuxFailed                MuxReason = "combiner failed"
	MuxTimedOut              MuxReason = "timed out"
	MuxInvocationFailed      MuxReason = "invocation failed"
)

// MuxError reports a failed combiner run. Diagnostics holds the tool's
// captured output, if any.
type MuxError struct {
	Reason      MuxReason
	Diagnostics string
	Err         error
}

func (e *MuxError) Error() string {
	msg := "combine: " + string(e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if d := strings.TrimSpace(e.Diagnostics); d != "" {
		msg += ": " + lastLine(d)
	}
	return msg
}

func (e *MuxError) Unwrap() error { return e.Err }

// IsMuxReason reports whether err is a MuxError with the given reason.
func IsMuxReason(err error, reason MuxReason) bool {
	var muxErr *MuxError
	return errors.As(err, &muxErr) && muxErr.Reason == reason
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
