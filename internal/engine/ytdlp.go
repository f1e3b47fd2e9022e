package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"
)

// yt-dlp settings shared by every run
const (
	DefaultProgressInterval = 500 * time.Millisecond
	DefaultEncoding         = "utf-8"
	PlaylistType            = "playlist"
)

// YTDLP drives the yt-dlp executable through go-ytdlp
type YTDLP struct {
	executable       string
	progressInterval time.Duration
	logger           *zap.Logger
}

// NewYTDLP creates a yt-dlp driver
func NewYTDLP(logger *zap.Logger) *YTDLP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YTDLP{
		progressInterval: DefaultProgressInterval,
		logger:           logger,
	}
}

// SetProgressInterval sets how often progress callbacks fire. Non-positive
// values restore the default.
func (y *YTDLP) SetProgressInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	y.progressInterval = interval
}

// SetExecutable sets the yt-dlp binary; empty means yt-dlp on PATH
func (y *YTDLP) SetExecutable(path string) {
	y.executable = path
}

// newCommand returns a base command bound to the configured binary
func (y *YTDLP) newCommand() *ytdlp.Command {
	cmd := ytdlp.New()
	if y.executable != "" {
		cmd.SetExecutable(y.executable)
	}
	return cmd
}

// NewProbe implements Driver. The probe never writes files.
func (y *YTDLP) NewProbe(url string) ProbeFunc {
	cmd := y.newCommand().
		SkipDownload().
		DumpSingleJSON().
		FlatPlaylist().
		NoWarnings()

	return func(ctx context.Context) (*Info, error) {
		y.logger.Debug("probing url", zap.String("url", url))
		res, err := cmd.Run(ctx, url)
		if err != nil {
			return nil, engineError(res, err)
		}
		return parseProbeOutput(res.Stdout)
	}
}

// NewRun implements Driver
func (y *YTDLP) NewRun(url string, opts Options) RunFunc {
	cmd := y.newRunCommand(opts)

	return func(ctx context.Context) (int, error) {
		y.logger.Debug("running engine", zap.String("url", url), zap.String("output", opts.OutputTemplate))
		res, err := cmd.Run(ctx, url)
		code := 0
		if res != nil {
			code = res.ExitCode
		}
		if err != nil {
			if code == 0 {
				code = 1
			}
			return code, engineError(res, err)
		}
		return code, nil
	}
}

// newRunCommand maps opts onto yt-dlp flags. yt-dlp runs the resulting
// post-processors in its own pipeline order.
func (y *YTDLP) newRunCommand(opts Options) *ytdlp.Command {
	cmd := y.newCommand().
		NoPlaylist().
		Encoding(DefaultEncoding).
		Output(opts.OutputTemplate)

	if opts.Format != "" {
		cmd.Format(opts.Format)
	}
	if opts.MergeOutputFormat != "" {
		cmd.MergeOutputFormat(opts.MergeOutputFormat)
	}
	if opts.FFmpegLocation != "" {
		cmd.FFmpegLocation(opts.FFmpegLocation)
	}
	if opts.WindowsFilenames {
		cmd.WindowsFilenames()
	}
	if opts.WriteSubtitles {
		cmd.WriteSubs()
	}
	if opts.WriteAutoSubtitles {
		cmd.WriteAutoSubs()
	}
	if len(opts.SubtitleLangs) > 0 {
		cmd.SubLangs(strings.Join(opts.SubtitleLangs, ","))
	}
	if opts.WriteThumbnail {
		cmd.WriteThumbnail()
	}

	for _, step := range opts.PostSteps {
		switch step.Kind {
		case PostStepExtractAudio:
			cmd.ExtractAudio().AudioFormat(step.Params[ParamCodec])
		case PostStepRemuxVideo:
			cmd.RemuxVideo(step.Params[ParamFormat])
		case PostStepConvertSubtitles:
			cmd.ConvertSubs(step.Params[ParamFormat])
		case PostStepEmbedSubtitles:
			cmd.EmbedSubs()
		case PostStepEmbedThumbnail:
			cmd.EmbedThumbnail()
		case PostStepEmbedMetadata:
			cmd.EmbedMetadata()
		default:
			y.logger.Warn("ignoring unknown post-step", zap.String("kind", string(step.Kind)))
		}
	}

	if opts.Hook != nil {
		hook := opts.Hook
		cmd.ProgressFunc(y.progressInterval, func(update ytdlp.ProgressUpdate) {
			hook(eventFromUpdate(update))
		})
	}
	return cmd
}

// eventFromUpdate converts a go-ytdlp progress update into an engine event
func eventFromUpdate(update ytdlp.ProgressUpdate) Event {
	ev := Event{
		Status:          string(update.Status),
		DownloadedBytes: int64(update.DownloadedBytes),
		TotalBytes:      int64(update.TotalBytes),
	}
	if !update.Started.IsZero() {
		elapsed := time.Since(update.Started).Seconds()
		if elapsed > 0 {
			ev.Speed = float64(update.DownloadedBytes) / elapsed
		}
	}
	return ev
}

// probeOutput is the subset of yt-dlp's info JSON the probe needs
type probeOutput struct {
	Type          string            `json:"_type"`
	Title         string            `json:"title"`
	PlaylistCount *int              `json:"playlist_count"`
	Entries       []json.RawMessage `json:"entries"`
}

// parseProbeOutput classifies a --dump-single-json document
func parseProbeOutput(stdout string) (*Info, error) {
	stdout = strings.TrimSpace(stdout)
	if stdout == "" {
		return nil, fmt.Errorf("engine returned no metadata")
	}

	var out probeOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		return nil, fmt.Errorf("failed to parse engine metadata: %w", err)
	}

	info := &Info{Title: strings.TrimSpace(out.Title)}
	if out.Type == PlaylistType || out.PlaylistCount != nil {
		info.IsPlaylist = true
		info.PlaylistCount = len(out.Entries)
		if out.PlaylistCount != nil {
			info.PlaylistCount = *out.PlaylistCount
		}
	}
	return info, nil
}

// engineError attaches the engine's own message to err
func engineError(res *ytdlp.Result, err error) error {
	if res == nil {
		return err
	}
	msg := lastLine(res.Stderr)
	if msg == "" {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// lastLine returns the last non-empty line of s
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
