package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/ytget/yt-converter/internal/history"
)

func historyAction(ctx *cli.Context) error {
	settings, err := loadSettings(ctx)
	if err != nil {
		return err
	}

	store, err := history.Open(settings.HistoryDir)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(ctx.Context, ctx.Int("limit"))
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(color.Output, "no finished downloads")
		return nil
	}

	for _, e := range entries {
		detail := e.Path
		if e.Error != "" {
			detail = e.Error
		}
		fmt.Fprintf(color.Output, "%s  %s  %s  %s\n",
			e.FinishedAt.Local().Format(time.DateTime),
			color.New(stateColor(e.State)).Sprintf("%-9s", e.State),
			e.URL,
			detail,
		)
	}
	return nil
}
