package download

// Package download implements the download orchestration core: the job state
// machine, the concurrency-bounded FIFO queue that dispatches jobs to the
// extraction engine, the mapping from output specs to engine options, and the
// ordered per-job delivery of progress and state events.
