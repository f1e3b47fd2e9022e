package main

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ytget/yt-converter/internal/config"
	"github.com/ytget/yt-converter/internal/engine"
	"github.com/ytget/yt-converter/internal/logging"
	"github.com/ytget/yt-converter/internal/platform"
)

// runtime holds the services shared by the commands
type runtime struct {
	settings *config.Settings

	logger    *zap.Logger
	driver    *engine.YTDLP
	engine    *engine.Serialized
	validator *platform.Validator

	// depErr is set when yt-dlp or ffmpeg could not be found
	depErr error
}

func withRuntime(f func(rt *runtime, ctx *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		settings, err := loadSettings(ctx)
		if err != nil {
			return err
		}
		rt := &runtime{settings: settings}
		defer rt.close()
		return f(rt, ctx)
	}
}

// loadSettings reads the config layers and applies the global flags
func loadSettings(ctx *cli.Context) (*config.Settings, error) {
	var (
		settings *config.Settings
		err      error
	)
	if path := ctx.String("config"); path != "" {
		settings, err = config.LoadFile(path)
	} else {
		settings, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if ctx.IsSet("log-level") {
		settings.LogLevel = ctx.String("log-level")
	}
	return settings, nil
}

// start builds the logger and the engine stack. Logs go to logOut, or to
// stderr when it is nil.
func (rt *runtime) start(logOut io.Writer) error {
	logger, err := logging.New(rt.settings.LogLevel, logOut)
	if err != nil {
		return err
	}
	rt.logger = logger

	deps, depErr := platform.CheckDependencies(rt.settings.YTDLPPath, rt.settings.FFmpegLocation)
	rt.depErr = depErr

	rt.driver = engine.NewYTDLP(logger)
	rt.driver.SetProgressInterval(rt.settings.ProgressInterval)
	if deps != nil && deps.YTDLP != "" {
		rt.driver.SetExecutable(deps.YTDLP)
	}
	rt.engine = engine.NewSerialized(rt.driver)

	rt.validator = platform.NewValidator(rt.engine, logger)
	rt.validator.SetTimeout(rt.settings.ProbeTimeout)
	rt.validator.SetPlaylistCounter(platform.NewPlaylistInspector())

	logger.Debug("runtime started",
		zap.String("version", version),
		zap.String("download_dir", rt.settings.DownloadDir),
		zap.Int("max_parallel", rt.settings.MaxParallel),
		zap.Bool("dependencies_ok", depErr == nil),
	)
	return nil
}

func (rt *runtime) close() {
	if rt.logger != nil {
		_ = rt.logger.Sync()
	}
}
