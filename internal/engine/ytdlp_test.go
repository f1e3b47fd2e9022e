package engine

import (
	"context"
	"testing"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

func TestParseProbeOutput(t *testing.T) {
	tests := []struct {
		name     string
		stdout   string
		wantErr  bool
		expected Info
	}{
		{
			name:     "single video",
			stdout:   `{"_type":"video","title":" Clip ","id":"abc"}`,
			expected: Info{Title: "Clip"},
		},
		{
			name:     "playlist with count",
			stdout:   `{"_type":"playlist","title":"Mix","playlist_count":12,"entries":[{},{}]}`,
			expected: Info{Title: "Mix", IsPlaylist: true, PlaylistCount: 12},
		},
		{
			name:     "playlist without count",
			stdout:   `{"_type":"playlist","title":"Mix","entries":[{},{},{}]}`,
			expected: Info{Title: "Mix", IsPlaylist: true, PlaylistCount: 3},
		},
		{
			name:     "count key alone marks a playlist",
			stdout:   `{"title":"Set","playlist_count":4}`,
			expected: Info{Title: "Set", IsPlaylist: true, PlaylistCount: 4},
		},
		{name: "empty", stdout: "  ", wantErr: true},
		{name: "garbage", stdout: "ERROR: nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := parseProbeOutput(tt.stdout)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseProbeOutput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if *info != tt.expected {
				t.Errorf("parseProbeOutput() = %+v, expected %+v", *info, tt.expected)
			}
		})
	}
}

func TestLastLine(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"one", "one"},
		{"WARNING: x\nERROR: Unsupported URL\n\n", "ERROR: Unsupported URL"},
	}

	for _, test := range tests {
		if got := lastLine(test.input); got != test.expected {
			t.Errorf("lastLine(%q) = %q, expected %q", test.input, got, test.expected)
		}
	}
}

func TestEventFromUpdate(t *testing.T) {
	update := ytdlp.ProgressUpdate{
		Status:          "downloading",
		TotalBytes:      1000,
		DownloadedBytes: 250,
		Started:         time.Now().Add(-time.Second),
	}

	ev := eventFromUpdate(update)
	if ev.Status != "downloading" {
		t.Errorf("Expected status 'downloading', got %q", ev.Status)
	}
	if ev.TotalBytes != 1000 || ev.DownloadedBytes != 250 {
		t.Errorf("Unexpected byte counts: %+v", ev)
	}
	if ev.Speed <= 0 || ev.Speed > 250 {
		t.Errorf("Expected speed in (0, 250], got %f", ev.Speed)
	}

	if ev := eventFromUpdate(ytdlp.ProgressUpdate{Status: "post_processing"}); ev.Speed != 0 {
		t.Errorf("Expected zero speed without a start time, got %f", ev.Speed)
	}
}

func TestNewYTDLP_Defaults(t *testing.T) {
	y := NewYTDLP(nil)
	if y.logger == nil {
		t.Error("Expected a no-op logger")
	}
	if y.progressInterval != DefaultProgressInterval {
		t.Errorf("Expected default interval, got %v", y.progressInterval)
	}
}

func TestYTDLP_SetProgressInterval(t *testing.T) {
	y := NewYTDLP(nil)
	y.SetProgressInterval(time.Second)
	if y.progressInterval != time.Second {
		t.Errorf("Expected 1s, got %v", y.progressInterval)
	}
	y.SetProgressInterval(0)
	if y.progressInterval != DefaultProgressInterval {
		t.Errorf("Expected the default for a zero interval, got %v", y.progressInterval)
	}
}

// runArgs returns the yt-dlp arguments built for opts, without the executable
func runArgs(t *testing.T, opts Options) []string {
	t.Helper()
	y := NewYTDLP(nil)
	y.SetExecutable("yt-dlp")
	cmd := y.newRunCommand(opts).BuildCommand(context.Background(), "https://site/v")
	if len(cmd.Args) < 2 {
		t.Fatalf("Expected arguments, got %v", cmd.Args)
	}
	return cmd.Args[1:]
}

func hasFlag(args []string, flag string) bool {
	for _, arg := range args {
		if arg == flag {
			return true
		}
	}
	return false
}

func flagValue(args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestNewRunCommand_Common(t *testing.T) {
	args := runArgs(t, Options{
		OutputTemplate:    "/tmp/out/clip.%(ext)s",
		Format:            "bv*+ba/b",
		MergeOutputFormat: "mp4/webm",
		FFmpegLocation:    "/opt/ffmpeg/bin",
		WindowsFilenames:  true,
	})

	values := map[string]string{
		"--output":              "/tmp/out/clip.%(ext)s",
		"--format":              "bv*+ba/b",
		"--merge-output-format": "mp4/webm",
		"--ffmpeg-location":     "/opt/ffmpeg/bin",
		"--encoding":            DefaultEncoding,
	}
	for flag, expected := range values {
		if got := flagValue(args, flag); got != expected {
			t.Errorf("%s = %q, expected %q (args %v)", flag, got, expected, args)
		}
	}
	for _, flag := range []string{"--no-playlist", "--windows-filenames"} {
		if !hasFlag(args, flag) {
			t.Errorf("Expected %s in %v", flag, args)
		}
	}
	if args[len(args)-1] != "https://site/v" {
		t.Errorf("Expected the URL last, got %v", args)
	}
}

func TestNewRunCommand_PostSteps(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		values  map[string]string
		flags   []string
		missing []string
	}{
		{
			name: "extract audio",
			opts: Options{PostSteps: []PostStep{
				{Kind: PostStepExtractAudio, Params: map[string]string{ParamCodec: "mp3"}},
			}},
			values:  map[string]string{"--audio-format": "mp3"},
			flags:   []string{"--extract-audio"},
			missing: []string{"--remux-video", "--embed-metadata", "--write-subs"},
		},
		{
			name: "remux with subtitles",
			opts: Options{
				WriteSubtitles:     true,
				WriteAutoSubtitles: true,
				SubtitleLangs:      []string{"en", "de"},
				PostSteps: []PostStep{
					{Kind: PostStepRemuxVideo, Params: map[string]string{ParamFormat: "webm"}},
					{Kind: PostStepConvertSubtitles, Params: map[string]string{ParamFormat: "srt"}},
					{Kind: PostStepEmbedSubtitles},
				},
			},
			values: map[string]string{
				"--remux-video":  "webm",
				"--convert-subs": "srt",
				"--sub-langs":    "en,de",
			},
			flags:   []string{"--write-subs", "--write-auto-subs", "--embed-subs"},
			missing: []string{"--extract-audio"},
		},
		{
			name: "thumbnail and metadata",
			opts: Options{
				WriteThumbnail: true,
				PostSteps: []PostStep{
					{Kind: PostStepEmbedThumbnail},
					{Kind: PostStepEmbedMetadata},
				},
			},
			flags:   []string{"--write-thumbnail", "--embed-thumbnail", "--embed-metadata"},
			missing: []string{"--embed-subs"},
		},
		{
			name:    "unknown step is ignored",
			opts:    Options{PostSteps: []PostStep{{Kind: "Compress"}}},
			missing: []string{"--extract-audio", "--remux-video", "--embed-metadata"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := runArgs(t, tt.opts)
			for flag, expected := range tt.values {
				if got := flagValue(args, flag); got != expected {
					t.Errorf("%s = %q, expected %q (args %v)", flag, got, expected, args)
				}
			}
			for _, flag := range tt.flags {
				if !hasFlag(args, flag) {
					t.Errorf("Expected %s in %v", flag, args)
				}
			}
			for _, flag := range tt.missing {
				if hasFlag(args, flag) {
					t.Errorf("Expected no %s in %v", flag, args)
				}
			}
		})
	}
}
