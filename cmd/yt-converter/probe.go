package main

import (
	"errors"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/ytget/yt-converter/internal/model"
	"github.com/ytget/yt-converter/internal/platform"
)

func probeAction(rt *runtime, ctx *cli.Context) error {
	urls := ctx.Args().Slice()
	if len(urls) == 0 {
		return errors.New("no URLs given")
	}
	if err := rt.start(nil); err != nil {
		return err
	}
	out := &printer{out: color.Output}
	if rt.depErr != nil {
		out.fail("%v", rt.depErr)
	}

	var invalid int
	for _, raw := range urls {
		res, err := rt.validator.Probe(ctx.Context, raw)
		if err != nil {
			invalid++
			out.fail("invalid   %s: %v", raw, err)
			continue
		}
		switch res.Kind {
		case platform.ProbePlaylist:
			invalid++
			out.warn("playlist  %s: %v", res.URL, res.Err())
		default:
			ft, _ := model.ParseFileType(rt.settings.FileType)
			out.ok("video     %s: %s -> %s", res.URL, res.Title, rt.settings.Filename(res.Title, ft))
		}
	}
	if invalid > 0 {
		return errors.New("some URLs cannot be downloaded")
	}
	return nil
}
