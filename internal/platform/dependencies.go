package platform

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/ytget/yt-converter/internal/model"
)

// Default executable names
const (
	YTDLPExecutable  = "yt-dlp"
	FFmpegExecutable = "ffmpeg"
)

// Dependencies holds the resolved paths of the external tools
type Dependencies struct {
	YTDLP  string
	FFmpeg string
}

// CheckDependencies resolves yt-dlp and ffmpeg. An empty argument means the
// default name on PATH. Missing tools yield a dependency error naming all of them.
func CheckDependencies(ytdlpPath, ffmpegPath string) (*Dependencies, error) {
	return checkDependencies(exec.LookPath, ytdlpPath, ffmpegPath)
}

func checkDependencies(lookPath func(string) (string, error), ytdlpPath, ffmpegPath string) (*Dependencies, error) {
	if ytdlpPath == "" {
		ytdlpPath = YTDLPExecutable
	}
	if ffmpegPath == "" {
		ffmpegPath = FFmpegExecutable
	}

	deps := &Dependencies{}
	var missing []string
	var causes []error

	if path, err := lookPath(ytdlpPath); err != nil {
		missing = append(missing, ytdlpPath)
		causes = append(causes, err)
	} else {
		deps.YTDLP = path
	}
	if path, err := lookPath(ffmpegPath); err != nil {
		missing = append(missing, ffmpegPath)
		causes = append(causes, err)
	} else {
		deps.FFmpeg = path
	}

	if len(missing) > 0 {
		msg := fmt.Sprintf("required tools not found: %s", strings.Join(missing, ", "))
		return deps, model.NewError(model.KindDependency, msg, causes[0])
	}
	return deps, nil
}
