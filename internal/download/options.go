package download

import (
	"path/filepath"
	"runtime"

	"github.com/ytget/yt-converter/internal/engine"
	"github.com/ytget/yt-converter/internal/model"
)

// Format selectors per file type and quality
const (
	FormatAudioBest  = "ba/b"
	FormatAudioWorst = "wa/w"

	FormatMP4Best  = "bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4] / bv*+ba/b"
	FormatMP4Good  = "bv*[ext=mp4][height<=720]+ba[ext=m4a]/b[ext=mp4][height<=720] / bv*[height<=720]+ba/b[height<=720]"
	FormatMP4Worst = "wv[ext=mp4]*+wa[ext=m4a]/w[ext=mp4] / wv*+wa/w"

	FormatVideoBest  = "bv*+ba/b"
	FormatVideoGood  = "bv*[height<=720]+ba/b[height<=720]"
	FormatVideoWorst = "wv*+wa/w"
)

// OutputExtTemplate lets the engine pick the extension of the written file
const OutputExtTemplate = ".%(ext)s"

// MergeOutputFormats is passed to the engine for every run
const MergeOutputFormats = "mp4/webm/mp3/opus/flac/wav"

// DefaultSubtitleLanguage is always requested alongside the current locale
const DefaultSubtitleLanguage = "en"

// Policy holds the process-wide inputs of the options mapping
type Policy struct {
	Language         string // two-letter code of the current locale
	FFmpegLocation   string
	WindowsFilenames bool
}

// DefaultPolicy returns a policy for the current platform and language
func DefaultPolicy(language, ffmpegLocation string) Policy {
	return Policy{
		Language:         language,
		FFmpegLocation:   ffmpegLocation,
		WindowsFilenames: runtime.GOOS == "windows",
	}
}

// BuildOptions maps an output spec to engine options. The hook is left unset.
func BuildOptions(spec model.OutputSpec, policy Policy) engine.Options {
	opts := engine.Options{
		OutputTemplate:    filepath.Join(spec.Directory, spec.Stem()+OutputExtTemplate),
		MergeOutputFormat: MergeOutputFormats,
		FFmpegLocation:    policy.FFmpegLocation,
		WindowsFilenames:  policy.WindowsFilenames,
	}

	ext := string(spec.FileType)
	switch {
	case spec.FileType.IsAudio():
		opts.Format = FormatAudioBest
		if spec.Quality == model.QualityWorst {
			opts.Format = FormatAudioWorst
		}
		opts.PostSteps = append(opts.PostSteps, engine.PostStep{
			Kind:   engine.PostStepExtractAudio,
			Params: map[string]string{engine.ParamCodec: ext},
		})

	case spec.FileType.IsVideo():
		opts.Format = videoFormat(spec.FileType, spec.Quality)
		opts.PostSteps = append(opts.PostSteps, engine.PostStep{
			Kind:   engine.PostStepRemuxVideo,
			Params: map[string]string{engine.ParamFormat: ext},
		})

		if spec.Subtitle != model.SubtitleNone && spec.Subtitle != "" {
			opts.WriteSubtitles = true
			opts.WriteAutoSubtitles = true
			opts.SubtitleLangs = subtitleLanguages(policy.Language)
			opts.PostSteps = append(opts.PostSteps,
				engine.PostStep{
					Kind:   engine.PostStepConvertSubtitles,
					Params: map[string]string{engine.ParamFormat: string(spec.Subtitle)},
				},
				engine.PostStep{Kind: engine.PostStepEmbedSubtitles},
			)
		}
	}

	if spec.EmbedMetadata {
		if spec.FileType.SupportsThumbnails() {
			opts.WriteThumbnail = true
			opts.PostSteps = append(opts.PostSteps, engine.PostStep{Kind: engine.PostStepEmbedThumbnail})
		}
		opts.PostSteps = append(opts.PostSteps, engine.PostStep{Kind: engine.PostStepEmbedMetadata})
	}

	return opts
}

func videoFormat(ft model.FileType, quality model.Quality) string {
	if ft == model.FileTypeMP4 {
		switch quality {
		case model.QualityBest:
			return FormatMP4Best
		case model.QualityGood:
			return FormatMP4Good
		default:
			return FormatMP4Worst
		}
	}
	switch quality {
	case model.QualityBest:
		return FormatVideoBest
	case model.QualityGood:
		return FormatVideoGood
	default:
		return FormatVideoWorst
	}
}

// subtitleLanguages returns "en" plus language, without duplicates
func subtitleLanguages(language string) []string {
	langs := []string{DefaultSubtitleLanguage}
	if language != "" && language != DefaultSubtitleLanguage {
		langs = append(langs, language)
	}
	return langs
}
