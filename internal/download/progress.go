package download

import (
	"strings"
	"sync"

	"github.com/ytget/yt-converter/internal/engine"
	"github.com/ytget/yt-converter/internal/model"
)

// Sink receives the events of one job, in order, on a goroutine owned by the job
type Sink interface {
	OnProgress(snapshot model.ProgressSnapshot)
	OnStateChange(state model.JobState)
}

// SinkFuncs adapts plain functions to Sink. Nil fields are skipped.
type SinkFuncs struct {
	Progress    func(model.ProgressSnapshot)
	StateChange func(model.JobState)
}

// OnProgress implements Sink
func (f SinkFuncs) OnProgress(snapshot model.ProgressSnapshot) {
	if f.Progress != nil {
		f.Progress(snapshot)
	}
}

// OnStateChange implements Sink
func (f SinkFuncs) OnStateChange(state model.JobState) {
	if f.StateChange != nil {
		f.StateChange(state)
	}
}

// Engine status tokens
const (
	EngineStatusDownloading    = "downloading"
	EngineStatusStarted        = "started"
	EngineStatusFinished       = "finished"
	EngineStatusProcessing     = "processing"
	EngineStatusPostProcessing = "post_processing"
)

// MapEngineStatus maps an engine status token to a progress status
func MapEngineStatus(status string) model.ProgressStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case EngineStatusDownloading:
		return model.ProgressDownloading
	case EngineStatusStarted, EngineStatusFinished, EngineStatusProcessing, EngineStatusPostProcessing:
		return model.ProgressProcessing
	default:
		return model.ProgressOther
	}
}

// progressTracker turns engine events into snapshots. The fraction never
// decreases within one downloading phase and keeps its last value when the
// total is unknown.
type progressTracker struct {
	phase    model.ProgressStatus
	fraction float64
}

func (p *progressTracker) snapshot(ev engine.Event) model.ProgressSnapshot {
	status := MapEngineStatus(ev.Status)
	if status != p.phase {
		if status == model.ProgressDownloading {
			p.fraction = 0
		}
		p.phase = status
	}

	snap := model.ProgressSnapshot{Status: status}
	if ev.Speed > 0 {
		snap.SpeedKiBps = ev.Speed / 1024
	}
	if status == model.ProgressDownloading {
		if ev.TotalBytes > 0 {
			f := float64(ev.DownloadedBytes) / float64(ev.TotalBytes)
			if f > 1 {
				f = 1
			}
			if f > p.fraction {
				p.fraction = f
			}
		}
		snap.Fraction = p.fraction
	}
	return snap
}

// event is either a state change or a progress snapshot
type event struct {
	isState  bool
	state    model.JobState
	snapshot model.ProgressSnapshot
}

// eventQueue is an unbounded FIFO with a single delivery goroutine. Pushing
// never blocks on the sink. The queue closes itself after a terminal state
// change and drops anything pushed later.
type eventQueue struct {
	sink Sink
	done chan struct{}

	mu      sync.Mutex
	cond    *sync.Cond
	items   []event
	closed  bool
	started bool
}

func newEventQueue(sink Sink) *eventQueue {
	q := &eventQueue{
		sink: sink,
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *eventQueue) pushState(state model.JobState) {
	q.push(event{isState: true, state: state})
}

func (q *eventQueue) pushProgress(snapshot model.ProgressSnapshot) {
	q.push(event{snapshot: snapshot})
}

func (q *eventQueue) push(ev event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.items = append(q.items, ev)
	if ev.isState && ev.state.IsTerminal() {
		q.closed = true
	}
	if !q.started {
		q.started = true
		go q.deliver()
	}
	q.cond.Signal()
}

func (q *eventQueue) deliver() {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		ev := q.items[0]
		q.items[0] = event{}
		q.items = q.items[1:]
		q.mu.Unlock()

		if q.sink == nil {
			continue
		}
		if ev.isState {
			q.sink.OnStateChange(ev.state)
		} else {
			q.sink.OnProgress(ev.snapshot)
		}
	}
}
