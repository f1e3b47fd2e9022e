package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/ytget/yt-converter/internal/model"
)

// Progress rendering constants
const (
	BarTotal      = 100
	BarWidth      = 40
	NameMaxWidth  = 36
	FileSizeUnit  = 1024
	FileSizeUnits = "KMGTPE"
)

// formatFileSize formats file size in bytes to human readable format
func formatFileSize(bytes int64) string {
	if bytes < FileSizeUnit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(FileSizeUnit), 0
	for n := bytes / FileSizeUnit; n >= FileSizeUnit; n /= FileSizeUnit {
		div *= FileSizeUnit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), FileSizeUnits[exp])
}

// formatSpeed formats a KiB/s rate; zero means unknown
func formatSpeed(kibps float64) string {
	if kibps <= 0 {
		return ""
	}
	return formatFileSize(int64(kibps*FileSizeUnit)) + "/s"
}

// progressLabel is the status column of a job bar
func progressLabel(s model.ProgressSnapshot) string {
	if s.Status != model.ProgressDownloading {
		return string(s.Status)
	}
	if speed := formatSpeed(s.SpeedKiBps); speed != "" {
		return fmt.Sprintf("%s %s", s.Status, speed)
	}
	return string(s.Status)
}

// truncateName shortens name to max runes
func truncateName(name string, max int) string {
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	return string(runes[:max-3]) + "..."
}

// renderer draws one bar per job. Writes go above the bars.
type renderer struct {
	progress *mpb.Progress
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{
		progress: mpb.New(
			mpb.WithAutoRefresh(),
			mpb.WithOutput(out),
			mpb.WithWidth(BarWidth),
		),
	}
}

func (r *renderer) Write(p []byte) (int, error) {
	return r.progress.Write(p)
}

// Wait blocks until every bar has completed or been aborted
func (r *renderer) Wait() {
	r.progress.Wait()
}

// NewBar adds a bar for a job named name
func (r *renderer) NewBar(name string) *jobBar {
	jb := &jobBar{status: string(model.JobStatePending)}
	jb.bar = r.progress.New(0,
		mpb.BarStyle(),
		mpb.PrependDecorators(
			decor.Name(truncateName(name, NameMaxWidth), decor.WCSyncSpaceR),
			decor.Any(jb.statusText, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(decor.Percentage(decor.WC{W: 5})),
	)
	// Only OnStateChange completes the bar
	jb.bar.SetTotal(BarTotal, false)
	return jb
}

// jobBar is the download.Sink of one job
type jobBar struct {
	bar *mpb.Bar

	mu     sync.Mutex
	status string
}

func (b *jobBar) statusText(decor.Statistics) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *jobBar) setStatus(status string) {
	b.mu.Lock()
	b.status = status
	b.mu.Unlock()
}

// OnProgress implements download.Sink
func (b *jobBar) OnProgress(s model.ProgressSnapshot) {
	b.setStatus(progressLabel(s))
	if !s.IsIndeterminate() {
		b.bar.SetCurrent(int64(s.Fraction * BarTotal))
	}
}

// OnStateChange implements download.Sink
func (b *jobBar) OnStateChange(state model.JobState) {
	b.setStatus(state.String())
	switch state {
	case model.JobStateSucceeded:
		b.bar.SetCurrent(BarTotal)
		b.bar.SetTotal(-1, true)
	case model.JobStateFailed, model.JobStateCancelled:
		b.bar.Abort(false)
	}
}

// Abort ends a bar whose job never got queued
func (b *jobBar) Abort() {
	b.bar.Abort(false)
}

// printer writes colored outcome lines
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) line(attr color.Attribute, format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, color.New(attr).Sprintf(format, args...))
}

func (p *printer) ok(format string, args ...interface{}) {
	p.line(color.FgGreen, format, args...)
}

func (p *printer) warn(format string, args ...interface{}) {
	p.line(color.FgYellow, format, args...)
}

func (p *printer) fail(format string, args ...interface{}) {
	p.line(color.FgRed, format, args...)
}

// stateColor returns the color used for a terminal state
func stateColor(state model.JobState) color.Attribute {
	switch state {
	case model.JobStateSucceeded:
		return color.FgGreen
	case model.JobStateCancelled:
		return color.FgYellow
	default:
		return color.FgRed
	}
}
