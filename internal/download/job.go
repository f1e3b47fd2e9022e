package download

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ytget/yt-converter/internal/engine"
	"github.com/ytget/yt-converter/internal/model"
	"github.com/ytget/yt-converter/internal/platform"
)

// JobIDPrefix prefixes every job id
const JobIDPrefix = "job-"

// Job is one unit of work: a URL and the output it should produce.
// URL, spec and id never change after NewJob.
type Job struct {
	id     string
	url    string
	spec   model.OutputSpec
	events *eventQueue

	// tracker is touched only by the engine goroutine
	tracker progressTracker

	mu              sync.Mutex
	state           model.JobState
	execID          engine.ExecutionID
	cancelRequested bool
	runReturned     bool
	submitted       bool
	result          *model.Result
}

// outcome is how a claimed job ended. The manager applies it together with
// freeing the job's slot.
type outcome struct {
	state model.JobState
	err   error
	code  int
}

// NewJob creates a pending job. Events are delivered to sink, which may be nil.
func NewJob(url string, spec model.OutputSpec, sink Sink) *Job {
	return &Job{
		id:     generateJobID(),
		url:    url,
		spec:   spec,
		events: newEventQueue(sink),
		state:  model.JobStatePending,
	}
}

// generateJobID returns a time-ordered unique id
func generateJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(JobIDPrefix+"%d", time.Now().UnixNano())
	}
	return JobIDPrefix + id.String()
}

// ID returns the job id
func (j *Job) ID() string { return j.id }

// URL returns the source URL
func (j *Job) URL() string { return j.url }

// Spec returns the output spec
func (j *Job) Spec() model.OutputSpec { return j.spec }

// State returns the current state
func (j *Job) State() model.JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// CancellationHandle returns the execution id of the in-flight engine call.
// It is empty unless the job is downloading or processing.
func (j *Job) CancellationHandle() engine.ExecutionID {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.execID
}

// Result returns the final outcome once the job is terminal
func (j *Job) Result() (model.Result, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.result == nil {
		return model.Result{}, false
	}
	return *j.result, true
}

// Done is closed after the terminal state change has been delivered to the sink
func (j *Job) Done() <-chan struct{} {
	return j.events.done
}

// markSubmitted records the first submission. It fails for a second one or
// for a job that is no longer pending.
func (j *Job) markSubmitted() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.submitted {
		return fmt.Errorf("job %s was already submitted", j.id)
	}
	if j.state != model.JobStatePending {
		return fmt.Errorf("job %s is %s, not %s", j.id, j.state, model.JobStatePending)
	}
	j.submitted = true
	return nil
}

// transitionLocked moves to next and emits the state change. j.mu must be held.
func (j *Job) transitionLocked(next model.JobState) bool {
	if !j.state.CanTransitionTo(next) {
		return false
	}
	j.state = next
	j.events.pushState(next)
	return true
}

// finishLocked moves to a terminal state and records the result. j.mu must be held.
func (j *Job) finishLocked(state model.JobState, err error) bool {
	if !j.state.CanTransitionTo(state) {
		return false
	}
	j.execID = ""
	j.result = &model.Result{State: state, Err: err}
	return j.transitionLocked(state)
}

// claim moves a pending job to preparing
func (j *Job) claim() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.transitionLocked(model.JobStatePreparing) {
		return false
	}
	j.events.pushProgress(model.ProgressSnapshot{Status: model.ProgressPreparing})
	return true
}

// cancelPending moves a pending job straight to cancelled
func (j *Job) cancelPending() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.finishLocked(model.JobStateCancelled, nil)
}

// requestCancel records a cancel request for an active job and, if an engine
// call is in flight, interrupts exactly that call
func (j *Job) requestCancel(eng engine.Engine) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.state.IsActive() {
		return
	}
	j.cancelRequested = true
	if j.execID != "" && !j.runReturned {
		eng.Interrupt(j.execID)
	}
}

// onEngineEvent runs on the engine goroutine
func (j *Job) onEngineEvent(ev engine.Event) {
	snap := j.tracker.snapshot(ev)

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state.IsTerminal() {
		return
	}
	if snap.Status == model.ProgressProcessing && j.state == model.JobStateDownloading {
		j.transitionLocked(model.JobStateProcessing)
	}
	j.events.pushProgress(snap)
}

// execute runs a claimed job and reports how it ended. The job stays
// active; finish makes it terminal.
func (j *Job) execute(ctx context.Context, eng engine.Engine, policy Policy, logger *zap.Logger) outcome {
	log := logger.With(zap.String("job", j.id), zap.String("url", j.url))

	if err := platform.RemoveStaleFile(j.spec.Path()); err != nil {
		log.Warn("cannot remove existing output file", zap.Error(err))
		return outcome{
			state: model.JobStateFailed,
			err:   model.NewError(model.KindExecution, "cannot remove existing output file", err),
		}
	}

	opts := BuildOptions(j.spec, policy)
	opts.Hook = j.onEngineEvent
	id := engine.NewExecutionID()

	j.mu.Lock()
	if j.cancelRequested {
		j.mu.Unlock()
		return outcome{state: model.JobStateCancelled}
	}
	j.transitionLocked(model.JobStateDownloading)
	j.execID = id
	j.mu.Unlock()

	log.Info("job dispatched", zap.String("execution", string(id)), zap.String("format", opts.Format))
	code, err := eng.Run(ctx, id, j.url, opts)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.runReturned = true
	state, resErr := j.classify(code, err)
	return outcome{state: state, err: resErr, code: code}
}

// finish moves the job to the terminal state of out
func (j *Job) finish(out outcome) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.finishLocked(out.state, out.err)
}

// logOutcome reports a finished job
func (j *Job) logOutcome(logger *zap.Logger, out outcome) {
	log := logger.With(zap.String("job", j.id), zap.String("url", j.url))
	switch out.state {
	case model.JobStateSucceeded:
		log.Info("job succeeded", zap.String("path", j.spec.Path()))
	case model.JobStateCancelled:
		log.Info("job cancelled")
	default:
		log.Warn("job failed", zap.Int("exit_code", out.code), zap.Error(out.err))
	}
}

// classify maps an engine result to a terminal state. j.mu must be held.
func (j *Job) classify(code int, err error) (model.JobState, error) {
	switch {
	case errors.Is(err, engine.ErrInterrupted):
		return model.JobStateCancelled, nil
	case j.cancelRequested && (err != nil || code != 0):
		return model.JobStateCancelled, nil
	case err != nil:
		return model.JobStateFailed, model.NewError(model.KindExecution, "engine run failed", err)
	case code != 0:
		return model.JobStateFailed, model.NewError(model.KindExecution, fmt.Sprintf("engine exited with code %d", code), nil)
	default:
		return model.JobStateSucceeded, nil
	}
}
