package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/ytget/yt-converter/internal/config"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

const AppName = "yt-converter"

func main() {
	app := cli.App{
		Name:    AppName,
		Usage:   "download single videos and convert them to a chosen format",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the YAML config file",
				EnvVars: []string{config.ConfigFileEnv},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Commands: []*cli.Command{{
			Name:        "probe",
			Usage:       "check URLs without downloading",
			ArgsUsage:   "URL...",
			Description: "classify each URL as a single video, a playlist or invalid",
			Action:      withRuntime(probeAction),
		}, {
			Name:        "download",
			Aliases:     []string{"get", "dl"},
			Usage:       "download and convert URLs",
			ArgsUsage:   "URL...",
			Description: "probe each URL, then download the single videos through a bounded queue",
			Flags:       downloadFlags(),
			Action:      withRuntime(downloadAction),
		}, {
			Name:  "history",
			Usage: "list finished downloads",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "limit",
					Usage: "maximum number of entries to show",
					Value: 20,
				},
			},
			Action: historyAction,
		}},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(color.Error, color.RedString("error: %v", err))
		os.Exit(1)
	}
}
