package ports

import (
	"context"
	"time"

	"vidgrabber/internal/core/domain"
)

// Resolver defines the contract for turning an item reference into stream descriptors.
type Resolver interface {
	// Resolve returns the item's metadata and descriptors. Domain-level
	// failures are reported as *domain.ResolveError.
	Resolve(ctx context.Context, reference string) (*domain.Resolution, error)
}

// Fetcher defines the contract for retrieving one remote stream to one local file.
type Fetcher interface {
	// Fetch streams the descriptor's content into dest. Failures are *domain.FetchError.
	Fetch(ctx context.Context, stream domain.StreamDescriptor, dest domain.ScratchHandle) error
}

// Combiner defines the contract for multiplexing two local inputs into one output.
type Combiner interface {
	// Combine runs the external combiner for job. Failures are *domain.MuxError.
	Combine(ctx context.Context, job domain.CombineJob, timeout time.Duration) error
}

// ScratchSpace defines the contract for per-request temporary files.
type ScratchSpace interface {
	// Allocate reserves a collision-free path for the given purpose.
	Allocate(purpose domain.Purpose, ext string) (domain.ScratchHandle, error)

	// Release deletes each handle independently. Missing files count as released.
	Release(handles ...domain.ScratchHandle)
}
