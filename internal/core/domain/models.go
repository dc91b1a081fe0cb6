package domain

import "time"

// StreamKind identifies which elementary stream a descriptor carries.
type StreamKind string

const (
	StreamVideo StreamKind = "video"
	StreamAudio StreamKind = "audio"
)

// StreamDescriptor points at one remote elementary stream.
type StreamDescriptor struct {
	Kind    StreamKind
	URL     string
	Ext     string            // container extension reported by the resolver, e.g. "mp4", "m4a"
	Headers map[string]string // request headers the remote host expects
}

// Resolution is the resolver's successful answer for an item reference.
type Resolution struct {
	Title     string
	Thumbnail string
	Uploader  string
	Duration  string
	Video     *StreamDescriptor
	Audio     *StreamDescriptor
	// SuggestedFilename overrides the title-derived name when set.
	SuggestedFilename string
}

// Purpose tags what a scratch file is used for.
type Purpose string

const (
	PurposeVideo  Purpose = "video"
	PurposeAudio  Purpose = "audio"
	PurposeOutput Purpose = "output"
)

// ScratchHandle is a uniquely named temporary file location owned by one pipeline run.
type ScratchHandle struct {
	Path       string
	Purpose    Purpose
	CreationID string
}

// CombineJob describes one combiner invocation.
type CombineJob struct {
	Video      ScratchHandle
	Audio      ScratchHandle
	Output     ScratchHandle
	Executable string // explicit combiner location; empty means search PATH
}

// Outcome is the terminal value of a pipeline run. Exactly one of
// Success or Failure is set.
type Outcome struct {
	RequestID string
	Success   *Success
	Failure   *Failure
	Elapsed   time.Duration
}

// Succeeded reports whether the run produced an artifact.
func (o Outcome) Succeeded() bool {
	return o.Success != nil
}

// Success carries the deliverable artifact.
type Success struct {
	OutputPath        string
	SuggestedFilename string
	ContentType       string
	Title             string
}

// Failure carries a classified error for the request layer.
type Failure struct {
	Kind    ErrorKind
	Message string
	Err     error `json:"-"`
}
