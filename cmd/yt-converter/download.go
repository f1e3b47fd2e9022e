package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ytget/yt-converter/internal/config"
	"github.com/ytget/yt-converter/internal/download"
	"github.com/ytget/yt-converter/internal/history"
	"github.com/ytget/yt-converter/internal/model"
	"github.com/ytget/yt-converter/internal/platform"
)

// MaxRetries bounds the --retries flag
const MaxRetries = 5

func downloadFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "type",
			Aliases: []string{"t"},
			Usage:   "output file type: " + choices(model.FileTypes),
		},
		&cli.StringFlag{
			Name:    "quality",
			Aliases: []string{"q"},
			Usage:   "quality preset: " + choices(config.GetQualityPresetOptions()),
		},
		&cli.StringFlag{
			Name:    "subtitle",
			Aliases: []string{"s"},
			Usage:   "subtitle format for video outputs: none, vtt or srt",
		},
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"o"},
			Usage:   "output directory",
		},
		&cli.StringFlag{
			Name:    "name",
			Aliases: []string{"n"},
			Usage:   "title used for the output filename (single URL only)",
		},
		&cli.BoolFlag{
			Name:  "embed-metadata",
			Usage: "embed metadata and thumbnail into the output",
		},
		&cli.IntFlag{
			Name:    "max-concurrent",
			Aliases: []string{"j"},
			Usage:   "number of downloads running at once",
		},
		&cli.IntFlag{
			Name:  "retries",
			Usage: "resubmit a failed download up to this many times",
		},
		&cli.BoolFlag{
			Name:  "reveal",
			Usage: "open the file manager at each finished file",
		},
	}
}

// choices joins enum values for flag usage text
func choices[T ~string](values []T) string {
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}

// applyDownloadFlags overrides settings with the flags that were given
func applyDownloadFlags(ctx *cli.Context, settings *config.Settings) error {
	if ctx.IsSet("type") {
		settings.FileType = ctx.String("type")
	}
	if ctx.IsSet("quality") {
		settings.QualityPreset = ctx.String("quality")
	}
	if ctx.IsSet("subtitle") {
		settings.Subtitle = ctx.String("subtitle")
	}
	if ctx.IsSet("dir") {
		settings.DownloadDir = ctx.String("dir")
	}
	if ctx.IsSet("embed-metadata") {
		settings.EmbedMetadata = ctx.Bool("embed-metadata")
	}
	if ctx.IsSet("max-concurrent") {
		settings.MaxParallel = ctx.Int("max-concurrent")
	}
	if ctx.IsSet("reveal") {
		settings.AutoRevealOnComplete = ctx.Bool("reveal")
	}
	return settings.Validate()
}

func downloadAction(rt *runtime, ctx *cli.Context) error {
	urls := ctx.Args().Slice()
	if len(urls) == 0 {
		return errors.New("no URLs given")
	}
	if ctx.IsSet("name") && len(urls) > 1 {
		return errors.New("--name needs exactly one URL")
	}
	retries := ctx.Int("retries")
	if retries < 0 || retries > MaxRetries {
		return fmt.Errorf("--retries must be between 0 and %d", MaxRetries)
	}
	if err := applyDownloadFlags(ctx, rt.settings); err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bars := newRenderer(color.Output)
	if err := rt.start(bars); err != nil {
		return err
	}
	out := &printer{out: bars}
	settings := rt.settings

	manager := download.NewManager(rt.engine, download.Config{
		MaxConcurrency: settings.MaxParallel,
		Policy:         download.DefaultPolicy(settings.SubtitleLanguage(), settings.FFmpegLocation),
		Logger:         rt.logger,
	})
	if rt.depErr != nil {
		out.fail("%v", rt.depErr)
		manager.SetUnavailable(rt.depErr)
	}

	if err := platform.CreateDirectoryIfNotExists(settings.DownloadDir); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	store, err := history.Open(settings.HistoryDir)
	if err != nil {
		rt.logger.Warn("history disabled", zap.Error(err))
		store = nil
	} else {
		defer store.Close()
	}

	d := &downloader{
		ctx:     sigCtx,
		manager: manager,
		bars:    bars,
		out:     out,
		store:   store,
		logger:  rt.logger,
		retries: retries,
		reveal:  settings.AutoRevealOnComplete,
	}

	go func() {
		<-sigCtx.Done()
		manager.CancelAll()
	}()

	for _, raw := range urls {
		if sigCtx.Err() != nil {
			break
		}
		res, err := rt.validator.Probe(sigCtx, raw)
		if err != nil {
			d.reject(raw, err)
			continue
		}
		if err := res.Err(); err != nil {
			d.reject(res.URL, err)
			continue
		}

		spec := settings.OutputSpec(res.Title)
		if ctx.IsSet("name") {
			spec.Filename = settings.Filename(ctx.String("name"), spec.FileType)
		}
		if err := spec.Validate(); err != nil {
			d.reject(res.URL, err)
			continue
		}
		if err := d.start(res.URL, spec, 0); err != nil {
			d.reject(res.URL, err)
			if model.IsKind(err, model.KindDependency) {
				break
			}
		}
	}

	d.wg.Wait()
	bars.Wait()
	return d.summary(&printer{out: color.Output})
}

// downloader submits jobs, follows them to a terminal state and retries
// failures
type downloader struct {
	ctx     context.Context
	manager *download.Manager
	bars    *renderer
	out     *printer
	store   *history.Store
	logger  *zap.Logger
	retries int
	reveal  bool

	wg sync.WaitGroup

	mu        sync.Mutex
	succeeded int
	failed    int
	cancelled int
	rejected  int
}

// start queues a job for url and follows it
func (d *downloader) start(url string, spec model.OutputSpec, attempt int) error {
	name := spec.Filename
	if attempt > 0 {
		name = fmt.Sprintf("%s (retry %d)", name, attempt)
	}
	bar := d.bars.NewBar(name)
	job := download.NewJob(url, spec, bar)
	handle, err := d.manager.Submit(job)
	if err != nil {
		bar.Abort()
		return err
	}

	d.wg.Add(1)
	go d.follow(job, attempt)

	// CancelAll may have run between the caller's check and Submit
	if d.ctx.Err() != nil {
		return d.manager.Cancel(handle)
	}
	return nil
}

func (d *downloader) follow(job *download.Job, attempt int) {
	defer d.wg.Done()
	<-job.Done()

	res, _ := job.Result()
	d.record(job, res)

	switch res.State {
	case model.JobStateSucceeded:
		d.count(&d.succeeded)
		d.out.ok("done      %s", job.Spec().Path())
		if d.reveal {
			if err := platform.OpenFileInManager(job.Spec().Path()); err != nil {
				d.logger.Warn("cannot reveal file", zap.String("path", job.Spec().Path()), zap.Error(err))
			}
		}
	case model.JobStateCancelled:
		d.count(&d.cancelled)
		d.out.warn("cancelled %s", job.URL())
	default:
		if attempt < d.retries && d.ctx.Err() == nil {
			d.logger.Info("retrying failed job", zap.String("job", job.ID()), zap.Int("attempt", attempt+1))
			if err := d.start(job.URL(), job.Spec(), attempt+1); err == nil {
				return
			}
		}
		d.count(&d.failed)
		d.out.fail("failed    %s: %s", job.URL(), res.Message())
	}
}

// reject reports a URL that never became a job
func (d *downloader) reject(url string, err error) {
	d.count(&d.rejected)
	if errors.Is(err, context.Canceled) {
		return
	}
	d.out.fail("skipped   %s: %v", url, err)
}

func (d *downloader) record(job *download.Job, res model.Result) {
	if d.store == nil {
		return
	}
	entry := history.Entry{
		JobID:    job.ID(),
		URL:      job.URL(),
		Path:     job.Spec().Path(),
		FileType: job.Spec().FileType,
		State:    res.State,
		Error:    res.Message(),
	}
	// Recorded even after an interrupt
	if err := d.store.Record(context.Background(), entry); err != nil {
		d.logger.Warn("cannot record history", zap.String("job", job.ID()), zap.Error(err))
	}
}

func (d *downloader) count(n *int) {
	d.mu.Lock()
	*n++
	d.mu.Unlock()
}

// summary prints the totals and returns an error if anything did not succeed
func (d *downloader) summary(out *printer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	out.line(stateColor(model.JobStateSucceeded), "%d succeeded, %d failed, %d cancelled, %d skipped",
		d.succeeded, d.failed, d.cancelled, d.rejected)
	if d.failed+d.rejected > 0 {
		return fmt.Errorf("%d of %d downloads did not complete", d.failed+d.rejected, d.succeeded+d.failed+d.cancelled+d.rejected)
	}
	return nil
}
