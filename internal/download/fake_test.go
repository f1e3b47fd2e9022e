package download

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ytget/yt-converter/internal/engine"
	"github.com/ytget/yt-converter/internal/model"
)

const testTimeout = 3 * time.Second

// script is the scripted behaviour of one engine run
type script struct {
	events []engine.Event
	code   int
	err    error
	delay  time.Duration
	block  bool // wait for release or interrupt
}

// fakeDriver is an engine.Driver that runs scripts instead of yt-dlp
type fakeDriver struct {
	mu       sync.Mutex
	scripts  map[string][]script
	releases map[string]chan struct{}
	opts     map[string]engine.Options
	running  int
	peak     int
	runs     int

	started chan string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		scripts:  make(map[string][]script),
		releases: make(map[string]chan struct{}),
		opts:     make(map[string]engine.Options),
		started:  make(chan string, 256),
	}
}

func (d *fakeDriver) script(url string, s ...script) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts[url] = append(d.scripts[url], s...)
}

func (d *fakeDriver) release(url string) {
	d.mu.Lock()
	ch := d.releaseLocked(url)
	d.mu.Unlock()
	close(ch)
}

func (d *fakeDriver) releaseLocked(url string) chan struct{} {
	ch, ok := d.releases[url]
	if !ok {
		ch = make(chan struct{})
		d.releases[url] = ch
	}
	return ch
}

// nextLocked pops the next script for url; the last one sticks
func (d *fakeDriver) nextLocked(url string) script {
	queue := d.scripts[url]
	if len(queue) == 0 {
		return script{}
	}
	s := queue[0]
	if len(queue) > 1 {
		d.scripts[url] = queue[1:]
	}
	return s
}

func (d *fakeDriver) stats() (runs, peak int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runs, d.peak
}

func (d *fakeDriver) optionsFor(url string) engine.Options {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opts[url]
}

func (d *fakeDriver) NewProbe(url string) engine.ProbeFunc {
	return func(ctx context.Context) (*engine.Info, error) {
		return &engine.Info{Title: url}, nil
	}
}

func (d *fakeDriver) NewRun(url string, opts engine.Options) engine.RunFunc {
	d.mu.Lock()
	d.runs++
	d.opts[url] = opts
	s := d.nextLocked(url)
	rel := d.releaseLocked(url)
	d.mu.Unlock()

	return func(ctx context.Context) (int, error) {
		d.mu.Lock()
		d.running++
		if d.running > d.peak {
			d.peak = d.running
		}
		d.mu.Unlock()
		defer func() {
			d.mu.Lock()
			d.running--
			d.mu.Unlock()
		}()

		d.started <- url
		for _, ev := range s.events {
			if opts.Hook != nil {
				opts.Hook(ev)
			}
		}
		if s.delay > 0 {
			select {
			case <-ctx.Done():
				return 1, ctx.Err()
			case <-time.After(s.delay):
			}
		}
		if s.block {
			select {
			case <-ctx.Done():
				return 1, ctx.Err()
			case <-rel:
			}
		}
		return s.code, s.err
	}
}

// recordingSink keeps every delivered event as a string
type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) OnProgress(p model.ProgressSnapshot) {
	s.add(fmt.Sprintf("progress:%s:%.2f", p.Status, p.Fraction))
}

func (s *recordingSink) OnStateChange(state model.JobState) {
	s.add("state:" + string(state))
}

func (s *recordingSink) add(ev string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func newTestManager(t *testing.T, maxConcurrency int) (*Manager, *fakeDriver) {
	t.Helper()
	d := newFakeDriver()
	m := NewManager(engine.NewSerialized(d), Config{
		MaxConcurrency: maxConcurrency,
		Policy:         Policy{Language: "en"},
	})
	t.Cleanup(func() {
		m.CancelAll()
		m.Wait()
	})
	return m, d
}

func testSpec(t *testing.T, name string) model.OutputSpec {
	t.Helper()
	return model.OutputSpec{
		Directory: t.TempDir(),
		Filename:  name + ".mp4",
		FileType:  model.FileTypeMP4,
		Quality:   model.QualityBest,
		Subtitle:  model.SubtitleNone,
	}
}

func testJob(t *testing.T, url string) *Job {
	t.Helper()
	return NewJob(url, testSpec(t, filepath.Base(url)), nil)
}

func waitStarted(t *testing.T, d *fakeDriver) string {
	t.Helper()
	select {
	case url := <-d.started:
		return url
	case <-time.After(testTimeout):
		t.Fatal("Timed out waiting for an engine run to start")
		return ""
	}
}

func expectNoStart(t *testing.T, d *fakeDriver) {
	t.Helper()
	select {
	case url := <-d.started:
		t.Fatalf("Expected no run to start, but %s started", url)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitDone(t *testing.T, job *Job) model.Result {
	t.Helper()
	select {
	case <-job.Done():
	case <-time.After(testTimeout):
		t.Fatalf("Timed out waiting for job %s (state %s)", job.URL(), job.State())
	}
	result, ok := job.Result()
	if !ok {
		t.Fatalf("Job %s is done but has no result", job.URL())
	}
	return result
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func sameSet(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	seen := make(map[string]int)
	for _, id := range got {
		seen[id]++
	}
	for _, id := range want {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}
