package model

// JobState represents the state of a download job
type JobState string

const (
	// JobStatePending means the job is queued but not claimed by a worker
	JobStatePending JobState = "Pending"

	// JobStatePreparing means a worker claimed the job and is building the engine invocation
	JobStatePreparing JobState = "Preparing"

	// JobStateDownloading means the engine is fetching bytes
	JobStateDownloading JobState = "Downloading"

	// JobStateProcessing means the engine is past the raw fetch (remux, transcode, embed)
	JobStateProcessing JobState = "Processing"

	// JobStateSucceeded means the engine returned a zero exit code
	JobStateSucceeded JobState = "Succeeded"

	// JobStateFailed means the engine returned an error or a non-zero exit code
	JobStateFailed JobState = "Failed"

	// JobStateCancelled means the job was cancelled before or during execution
	JobStateCancelled JobState = "Cancelled"
)

// transitions lists the allowed successors of every non-terminal state.
var transitions = map[JobState][]JobState{
	JobStatePending:     {JobStatePreparing, JobStateCancelled},
	JobStatePreparing:   {JobStateDownloading, JobStateFailed, JobStateCancelled},
	JobStateDownloading: {JobStateProcessing, JobStateSucceeded, JobStateFailed, JobStateCancelled},
	JobStateProcessing:  {JobStateSucceeded, JobStateFailed, JobStateCancelled},
}

// String returns the string representation of JobState
func (s JobState) String() string {
	return string(s)
}

// IsActive returns true if a worker owns the job
func (s JobState) IsActive() bool {
	return s == JobStatePreparing || s == JobStateDownloading || s == JobStateProcessing
}

// IsExecuting returns true while an engine call is in flight
func (s JobState) IsExecuting() bool {
	return s == JobStateDownloading || s == JobStateProcessing
}

// IsTerminal returns true if the job is in an absorbing state (succeeded, failed, or cancelled)
func (s JobState) IsTerminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed || s == JobStateCancelled
}

// CanTransitionTo reports whether next is a legal successor of s
func (s JobState) CanTransitionTo(next JobState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
