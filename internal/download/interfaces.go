package download

// Downloader is the caller-facing queue API
type Downloader interface {
	Submit(job *Job) (JobHandle, error)
	Cancel(handle JobHandle) error
	Configure(maxConcurrency int) error
	CancelAll()
	Snapshot() QueueSnapshot
	Wait()
	SetUnavailable(err error)
}

var _ Downloader = (*Manager)(nil)
