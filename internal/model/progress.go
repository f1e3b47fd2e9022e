package model

// ProgressStatus is the coarse phase reported with a progress snapshot
type ProgressStatus string

const (
	ProgressPreparing   ProgressStatus = "Preparing"
	ProgressDownloading ProgressStatus = "Downloading"
	ProgressProcessing  ProgressStatus = "Processing"
	ProgressOther       ProgressStatus = "Other"
)

// ProgressSnapshot is a transient view of a running job.
// Fraction is meaningful only while Status is ProgressDownloading.
type ProgressSnapshot struct {
	Status     ProgressStatus
	Fraction   float64 // 0.0 to 1.0
	SpeedKiBps float64
}

// IsIndeterminate returns true when Fraction should not be rendered as a percentage
func (p ProgressSnapshot) IsIndeterminate() bool {
	return p.Status != ProgressDownloading
}

// Result is the final outcome of a job
type Result struct {
	State JobState
	Err   error // set only when State is JobStateFailed
}

// Message returns the failure text, or an empty string
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
