package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInterrupted is returned by Run when the execution was stopped by Interrupt
var ErrInterrupted = errors.New("engine execution interrupted")

// ExecutionIDPrefix prefixes every execution id
const ExecutionIDPrefix = "exec-"

// ExecutionID identifies one in-flight engine call. It is the target of Interrupt.
type ExecutionID string

// NewExecutionID returns a fresh, time-ordered execution id
func NewExecutionID() ExecutionID {
	id, err := uuid.NewV7()
	if err != nil {
		return ExecutionID(fmt.Sprintf(ExecutionIDPrefix+"%d", time.Now().UnixNano()))
	}
	return ExecutionID(ExecutionIDPrefix + id.String())
}

// Engine is the caller-facing boundary of the extraction engine
type Engine interface {
	// Probe runs a read-only metadata query for url
	Probe(ctx context.Context, url string) (*Info, error)

	// Run executes a download under id and blocks until the engine returns.
	// It returns ErrInterrupted if Interrupt(id) stopped it.
	Run(ctx context.Context, id ExecutionID, url string, opts Options) (int, error)

	// Interrupt aborts the execution registered under id, and only that one
	Interrupt(id ExecutionID)
}

// Info is the result of a probe
type Info struct {
	Title         string
	IsPlaylist    bool
	PlaylistCount int
}

// Event is one engine progress or post-processing callback
type Event struct {
	Status          string
	DownloadedBytes int64
	TotalBytes      int64   // zero when unknown
	Speed           float64 // bytes per second, zero when unknown
}

// Hook receives engine events on the engine's goroutine
type Hook func(Event)

// PostStepKind tags a post-processing step
type PostStepKind string

const (
	PostStepExtractAudio     PostStepKind = "ExtractAudio"
	PostStepRemuxVideo       PostStepKind = "RemuxVideo"
	PostStepConvertSubtitles PostStepKind = "ConvertSubtitles"
	PostStepEmbedSubtitles   PostStepKind = "EmbedSubtitles"
	PostStepEmbedThumbnail   PostStepKind = "EmbedThumbnail"
	PostStepEmbedMetadata    PostStepKind = "EmbedMetadata"
)

// Post-step parameter keys
const (
	ParamCodec  = "codec"
	ParamFormat = "format"
)

// PostStep is one post-processing descriptor. Steps run in slice order.
type PostStep struct {
	Kind   PostStepKind
	Params map[string]string
}

// Options is the flat engine option set for one run
type Options struct {
	OutputTemplate     string
	Format             string
	MergeOutputFormat  string
	PostSteps          []PostStep
	WriteSubtitles     bool
	WriteAutoSubtitles bool
	SubtitleLangs      []string
	WriteThumbnail     bool
	FFmpegLocation     string
	WindowsFilenames   bool
	Hook               Hook
}

// HasPostStep reports whether a step of the given kind is present
func (o Options) HasPostStep(kind PostStepKind) bool {
	for _, step := range o.PostSteps {
		if step.Kind == kind {
			return true
		}
	}
	return false
}
