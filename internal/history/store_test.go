package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ytget/yt-converter/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []Entry{
		{JobID: "job-1", URL: "https://site/1", Path: "/d/1.mp4", FileType: model.FileTypeMP4, State: model.JobStateSucceeded, FinishedAt: base},
		{JobID: "job-2", URL: "https://site/2", Path: "/d/2.mp3", FileType: model.FileTypeMP3, State: model.JobStateFailed, Error: "execution: engine exited with code 1", FinishedAt: base.Add(time.Minute)},
		{JobID: "job-3", URL: "https://site/3", Path: "/d/3.webm", FileType: model.FileTypeWEBM, State: model.JobStateCancelled, FinishedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record(%s) failed: %v", e.JobID, err)
		}
	}

	got, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(got))
	}
	if got[0].JobID != "job-3" || got[2].JobID != "job-1" {
		t.Errorf("Expected newest first, got %s..%s", got[0].JobID, got[2].JobID)
	}
	if got[1].State != model.JobStateFailed || got[1].Error == "" || got[1].FileType != model.FileTypeMP3 {
		t.Errorf("Unexpected failed entry: %+v", got[1])
	}
	if !got[2].FinishedAt.Equal(base) {
		t.Errorf("Expected finish time %v, got %v", base, got[2].FinishedAt)
	}

	limited, err := s.List(ctx, 2)
	if err != nil || len(limited) != 2 {
		t.Errorf("Expected 2 entries with limit, got %d (%v)", len(limited), err)
	}
}

func TestStore_RecordReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := Entry{JobID: "job-1", URL: "u", Path: "p", FileType: model.FileTypeMP4, State: model.JobStateFailed}
	if err := s.Record(ctx, e); err != nil {
		t.Fatal(err)
	}
	e.State = model.JobStateSucceeded
	if err := s.Record(ctx, e); err != nil {
		t.Fatal(err)
	}

	got, err := s.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].State != model.JobStateSucceeded {
		t.Errorf("Expected one replaced entry, got %+v", got)
	}
	if got[0].FinishedAt.IsZero() {
		t.Error("Expected a finish time to be filled in")
	}
}

func TestStore_RejectsUnfinishedJobs(t *testing.T) {
	s := openTestStore(t)

	for _, state := range []model.JobState{model.JobStatePending, model.JobStateDownloading} {
		e := Entry{JobID: fmt.Sprintf("job-%s", state), State: state}
		if err := s.Record(context.Background(), e); err == nil {
			t.Errorf("Expected error recording a %s job", state)
		}
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	e := Entry{JobID: "job-1", URL: "u", Path: "p", FileType: model.FileTypeMP4, State: model.JobStateSucceeded}
	if err := s.Record(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.List(context.Background(), 5)
	if err != nil || len(got) != 1 {
		t.Errorf("Expected the entry to survive reopening, got %d (%v)", len(got), err)
	}
}

func TestOpen_PragmasOnEveryConnection(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Holding both forces two distinct pooled connections
	first, err := s.db.Conn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	second, err := s.db.Conn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	for i, conn := range []*sql.Conn{first, second} {
		var timeout int
		if err := conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("connection %d: %v", i, err)
		}
		if timeout != BusyTimeoutMillis {
			t.Errorf("connection %d: expected busy_timeout %d, got %d", i, BusyTimeoutMillis, timeout)
		}
		var mode string
		if err := conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("connection %d: %v", i, err)
		}
		if !strings.EqualFold(mode, JournalMode) {
			t.Errorf("connection %d: expected journal mode %s, got %s", i, JournalMode, mode)
		}
	}
}

func TestStore_ConcurrentRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Record(ctx, Entry{
				JobID:    fmt.Sprintf("job-%d", i),
				URL:      "https://site/v",
				FileType: model.FileTypeMP4,
				State:    model.JobStateSucceeded,
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Record failed: %v", err)
		}
	}

	got, err := s.List(ctx, n)
	if err != nil || len(got) != n {
		t.Errorf("Expected %d entries, got %d (%v)", n, len(got), err)
	}
}
