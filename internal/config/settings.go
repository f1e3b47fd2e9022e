package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/ytget/yt-converter/internal/engine"
	"github.com/ytget/yt-converter/internal/model"
	"github.com/ytget/yt-converter/internal/platform"
)

const (
	envVarPrefix = "YTC"
	appName      = "yt-converter"
)

// ConfigFileEnv names the variable that overrides the config file location
const ConfigFileEnv = envVarPrefix + "_CONFIG_FILE"

// Default values
const (
	DefaultMaxParallel        = 2
	MinMaxParallel            = 1
	MaxMaxParallel            = 10
	DefaultQualityPreset      = model.QualityBest
	DefaultFileType           = model.FileTypeMP4
	DefaultSubtitle           = model.SubtitleNone
	DefaultFilenameTemplate   = "%(title)s.%(ext)s"
	DefaultLanguage           = platform.SystemLanguage
	DefaultAutoRevealComplete = true
	DefaultEmbedMetadata      = true
	DefaultProbeTimeout       = platform.DefaultProbeTimeout
	DefaultProgressInterval   = engine.DefaultProgressInterval
	DefaultLogLevel           = "info"
)

// Filename template placeholders
const (
	TitlePlaceholder = "%(title)s"
	ExtPlaceholder   = "%(ext)s"
)

// Settings is the application configuration. Defaults are applied first,
// then a .env file, then the YAML config file, then YTC_* variables.
type Settings struct {
	DownloadDir          string        `yaml:"downloadDir"          envconfig:"DOWNLOAD_DIR"`
	MaxParallel          int           `yaml:"maxParallel"          envconfig:"MAX_PARALLEL"`
	QualityPreset        string        `yaml:"qualityPreset"        envconfig:"QUALITY_PRESET"`
	FileType             string        `yaml:"fileType"             envconfig:"FILE_TYPE"`
	Subtitle             string        `yaml:"subtitle"             envconfig:"SUBTITLE"`
	EmbedMetadata        bool          `yaml:"embedMetadata"        envconfig:"EMBED_METADATA"`
	FilenameTemplate     string        `yaml:"filenameTemplate"     envconfig:"FILENAME_TEMPLATE"`
	Language             string        `yaml:"language"             envconfig:"LANGUAGE"`
	AutoRevealOnComplete bool          `yaml:"autoRevealOnComplete" envconfig:"AUTO_REVEAL_ON_COMPLETE"`
	YTDLPPath            string        `yaml:"ytdlpPath"            envconfig:"YTDLP_PATH"`
	FFmpegLocation       string        `yaml:"ffmpegLocation"       envconfig:"FFMPEG_LOCATION"`
	ProbeTimeout         time.Duration `yaml:"probeTimeout"         envconfig:"PROBE_TIMEOUT"`
	ProgressInterval     time.Duration `yaml:"progressInterval"     envconfig:"PROGRESS_INTERVAL"`
	HistoryDir           string        `yaml:"historyDir"           envconfig:"HISTORY_DIR"`
	LogLevel             string        `yaml:"logLevel"             envconfig:"LOG_LEVEL"`
}

// Defaults returns settings with every default applied
func Defaults() *Settings {
	downloadDir, err := platform.GetHomeDownloadsDir()
	if err != nil {
		downloadDir = filepath.Join(os.TempDir(), "downloads")
	}
	return &Settings{
		DownloadDir:          downloadDir,
		MaxParallel:          DefaultMaxParallel,
		QualityPreset:        string(DefaultQualityPreset),
		FileType:             string(DefaultFileType),
		Subtitle:             string(DefaultSubtitle),
		EmbedMetadata:        DefaultEmbedMetadata,
		FilenameTemplate:     DefaultFilenameTemplate,
		Language:             DefaultLanguage,
		AutoRevealOnComplete: DefaultAutoRevealComplete,
		ProbeTimeout:         DefaultProbeTimeout,
		ProgressInterval:     DefaultProgressInterval,
		HistoryDir:           defaultHistoryDir(),
		LogLevel:             DefaultLogLevel,
	}
}

// defaultHistoryDir is the per-user data directory for the history database
func defaultHistoryDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(dir, appName)
}

// DefaultConfigFile returns the config file path used when YTC_CONFIG_FILE is unset
func DefaultConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".config", appName+".yaml")
}

// Load reads settings from all layers and validates them
func Load() (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	configFile := os.Getenv(ConfigFileEnv)
	if configFile == "" {
		configFile = DefaultConfigFile()
	}
	return LoadFile(configFile)
}

// LoadFile applies defaults, the YAML file at path (if it exists) and the
// environment, then validates the result
func LoadFile(path string) (*Settings, error) {
	s := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else if err := yaml.UnmarshalStrict(data, s); err != nil {
		return nil, fmt.Errorf("unmarshaling config file: %w", err)
	}

	if err := envconfig.Process(envVarPrefix, s); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate clamps numeric settings and rejects unknown enumerations
func (s *Settings) Validate() error {
	s.MaxParallel = ClampMaxParallel(s.MaxParallel)
	if s.ProbeTimeout <= 0 {
		s.ProbeTimeout = DefaultProbeTimeout
	}
	if s.ProgressInterval <= 0 {
		s.ProgressInterval = DefaultProgressInterval
	}
	if s.FilenameTemplate == "" {
		s.FilenameTemplate = DefaultFilenameTemplate
	}
	if !strings.Contains(s.FilenameTemplate, TitlePlaceholder) {
		return fmt.Errorf("invalid configuration: filenameTemplate / %s_FILENAME_TEMPLATE must contain %s", envVarPrefix, TitlePlaceholder)
	}
	if s.DownloadDir == "" {
		return fmt.Errorf("missing required configuration: downloadDir / %s_DOWNLOAD_DIR", envVarPrefix)
	}
	if _, err := model.ParseQuality(s.QualityPreset); err != nil {
		return fmt.Errorf("invalid configuration: qualityPreset / %s_QUALITY_PRESET: %w", envVarPrefix, err)
	}
	if _, err := model.ParseFileType(s.FileType); err != nil {
		return fmt.Errorf("invalid configuration: fileType / %s_FILE_TYPE: %w", envVarPrefix, err)
	}
	if _, err := model.ParseSubtitle(s.Subtitle); err != nil {
		return fmt.Errorf("invalid configuration: subtitle / %s_SUBTITLE: %w", envVarPrefix, err)
	}
	return nil
}

// ClampMaxParallel limits the number of parallel downloads to 1..10
func ClampMaxParallel(count int) int {
	if count < MinMaxParallel {
		return MinMaxParallel
	}
	if count > MaxMaxParallel {
		return MaxMaxParallel
	}
	return count
}

// Filename expands the filename template for a title and file type
func (s *Settings) Filename(title string, ft model.FileType) string {
	tmpl := s.FilenameTemplate
	if tmpl == "" {
		tmpl = DefaultFilenameTemplate
	}
	name := strings.ReplaceAll(tmpl, TitlePlaceholder, model.SafeTitle(title))
	name = strings.ReplaceAll(name, ExtPlaceholder, string(ft))
	if !strings.HasSuffix(name, ft.Extension()) {
		name += ft.Extension()
	}
	return name
}

// OutputSpec builds the output spec for a probed title from the configured defaults
func (s *Settings) OutputSpec(title string) model.OutputSpec {
	ft, _ := model.ParseFileType(s.FileType)
	quality, _ := model.ParseQuality(s.QualityPreset)
	subtitle, _ := model.ParseSubtitle(s.Subtitle)
	return model.OutputSpec{
		Directory:     s.DownloadDir,
		Filename:      s.Filename(title, ft),
		FileType:      ft,
		Quality:       quality,
		Subtitle:      subtitle,
		EmbedMetadata: s.EmbedMetadata,
	}
}

// SubtitleLanguage returns the two-letter language used for subtitles
func (s *Settings) SubtitleLanguage() string {
	return platform.ResolveLanguage(s.Language)
}

// GetQualityPresetOptions returns available quality preset options
func GetQualityPresetOptions() []model.Quality {
	return []model.Quality{model.QualityBest, model.QualityGood, model.QualityWorst}
}
