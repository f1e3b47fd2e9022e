package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FileType is the container or codec a job produces
type FileType string

const (
	FileTypeMP4  FileType = "mp4"
	FileTypeWEBM FileType = "webm"
	FileTypeMP3  FileType = "mp3"
	FileTypeOPUS FileType = "opus"
	FileTypeFLAC FileType = "flac"
	FileTypeWAV  FileType = "wav"
)

// Quality is the quality tier requested for a job
type Quality string

const (
	QualityBest  Quality = "best"
	QualityGood  Quality = "good"
	QualityWorst Quality = "worst"
)

// Subtitle is the subtitle format requested for a job
type Subtitle string

const (
	SubtitleNone Subtitle = "none"
	SubtitleVTT  Subtitle = "vtt"
	SubtitleSRT  Subtitle = "srt"
)

// FileTypes lists every supported output type in display order
var FileTypes = []FileType{FileTypeMP4, FileTypeWEBM, FileTypeMP3, FileTypeOPUS, FileTypeFLAC, FileTypeWAV}

// IsAudio returns true for audio-only outputs
func (ft FileType) IsAudio() bool {
	switch ft {
	case FileTypeMP3, FileTypeOPUS, FileTypeFLAC, FileTypeWAV:
		return true
	}
	return false
}

// IsVideo returns true for video outputs
func (ft FileType) IsVideo() bool {
	return ft == FileTypeMP4 || ft == FileTypeWEBM
}

// SupportsThumbnails returns true if the container can carry an embedded thumbnail
func (ft FileType) SupportsThumbnails() bool {
	switch ft {
	case FileTypeMP4, FileTypeMP3, FileTypeOPUS, FileTypeFLAC:
		return true
	}
	return false
}

// Extension returns the file extension including the leading dot
func (ft FileType) Extension() string {
	return "." + string(ft)
}

// ParseFileType parses a file type name, case-insensitively
func ParseFileType(s string) (FileType, error) {
	ft := FileType(strings.ToLower(strings.TrimSpace(s)))
	if ft.IsAudio() || ft.IsVideo() {
		return ft, nil
	}
	return "", fmt.Errorf("unsupported file type: %q", s)
}

// ParseQuality parses a quality tier name, case-insensitively
func ParseQuality(s string) (Quality, error) {
	q := Quality(strings.ToLower(strings.TrimSpace(s)))
	switch q {
	case QualityBest, QualityGood, QualityWorst:
		return q, nil
	}
	return "", fmt.Errorf("unsupported quality: %q", s)
}

// ParseSubtitle parses a subtitle format name; the empty string means none
func ParseSubtitle(s string) (Subtitle, error) {
	sub := Subtitle(strings.ToLower(strings.TrimSpace(s)))
	switch sub {
	case "":
		return SubtitleNone, nil
	case SubtitleNone, SubtitleVTT, SubtitleSRT:
		return sub, nil
	}
	return "", fmt.Errorf("unsupported subtitle format: %q", s)
}

// OutputSpec describes where and how a job writes its result. It is fixed once the job exists.
type OutputSpec struct {
	Directory     string
	Filename      string
	FileType      FileType
	Quality       Quality
	Subtitle      Subtitle
	EmbedMetadata bool
}

// Path returns the exact destination path of the output file
func (o OutputSpec) Path() string {
	return filepath.Join(o.Directory, o.Filename)
}

// Stem returns the destination filename without its extension
func (o OutputSpec) Stem() string {
	return strings.TrimSuffix(o.Filename, filepath.Ext(o.Filename))
}

// Validate checks that the spec names a destination and supported enumerations
func (o OutputSpec) Validate() error {
	if o.Directory == "" {
		return fmt.Errorf("output directory is empty")
	}
	if o.Stem() == "" {
		return fmt.Errorf("output filename is empty")
	}
	if strings.ContainsAny(o.Filename, `/\`) {
		return fmt.Errorf("output filename must not contain path separators: %s", o.Filename)
	}
	if _, err := ParseFileType(string(o.FileType)); err != nil {
		return err
	}
	if _, err := ParseQuality(string(o.Quality)); err != nil {
		return err
	}
	if _, err := ParseSubtitle(string(o.Subtitle)); err != nil {
		return err
	}
	return nil
}

// FilenameFor builds a destination filename from a title
func FilenameFor(title string, ft FileType) string {
	return SafeTitle(title) + ft.Extension()
}

// SafeTitle replaces characters that are unsafe on common filesystems and
// falls back to DefaultTitle for empty names
func SafeTitle(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" || name == "." || name == ".." {
		return DefaultTitle
	}
	return name
}

// DefaultTitle is used when the engine supplies no title
const DefaultTitle = "Video"
