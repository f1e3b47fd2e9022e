package platform

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ytget/yt-converter/internal/engine"
	"github.com/ytget/yt-converter/internal/model"
)

// DefaultProbeTimeout bounds one engine metadata query
const DefaultProbeTimeout = 30 * time.Second

// ProbeKind classifies a probed URL
type ProbeKind int

const (
	// ProbeValid is a single downloadable item
	ProbeValid ProbeKind = iota
	// ProbePlaylist is a multi-item collection, which is not accepted
	ProbePlaylist
)

// String returns the string representation of the probe kind
func (k ProbeKind) String() string {
	switch k {
	case ProbeValid:
		return "valid"
	case ProbePlaylist:
		return "playlist"
	default:
		return "unknown"
	}
}

// ProbeResult is the outcome of a successful probe
type ProbeResult struct {
	Kind          ProbeKind
	URL           string
	IsSingleVideo bool
	Title         string
	PlaylistCount int // zero when unknown
}

// Err converts a playlist result into a validation error. It is nil for a
// single item.
func (r *ProbeResult) Err() error {
	if r.Kind != ProbePlaylist {
		return nil
	}
	msg := "playlists are not supported"
	if r.PlaylistCount > 0 {
		msg = fmt.Sprintf("playlists are not supported (%d entries)", r.PlaylistCount)
	}
	return model.NewError(model.KindValidation, msg, nil)
}

// Validator classifies URLs before any job is created
type Validator struct {
	engine    engine.Engine
	playlists PlaylistCounter
	timeout   time.Duration
	logger    *zap.Logger
}

// NewValidator creates a validator that probes through eng
func NewValidator(eng engine.Engine, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		engine:  eng,
		timeout: DefaultProbeTimeout,
		logger:  logger,
	}
}

// SetTimeout sets the probe timeout
func (v *Validator) SetTimeout(timeout time.Duration) {
	v.timeout = timeout
}

// SetPlaylistCounter enables best-effort entry counts for playlist pages
func (v *Validator) SetPlaylistCounter(counter PlaylistCounter) {
	v.playlists = counter
}

// Probe classifies rawURL. Malformed or unreachable URLs return a validation
// error; playlists return a ProbePlaylist result.
func (v *Validator) Probe(ctx context.Context, rawURL string) (*ProbeResult, error) {
	u, err := parseMediaURL(rawURL)
	if err != nil {
		return nil, model.NewError(model.KindValidation, "invalid URL", err)
	}
	normalized := u.String()

	if IsPlaylistPage(u) {
		result := &ProbeResult{Kind: ProbePlaylist, URL: normalized}
		result.PlaylistCount = v.countEntries(ctx, normalized)
		v.logger.Debug("playlist page rejected without probing", zap.String("url", normalized))
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	info, err := v.engine.Probe(ctx, normalized)
	if err != nil {
		v.logger.Debug("probe failed", zap.String("url", normalized), zap.Error(err))
		return nil, model.NewError(model.KindValidation, "URL could not be probed", err)
	}

	if info.IsPlaylist {
		return &ProbeResult{
			Kind:          ProbePlaylist,
			URL:           normalized,
			Title:         info.Title,
			PlaylistCount: info.PlaylistCount,
		}, nil
	}

	title := strings.TrimSpace(info.Title)
	if title == "" {
		title = model.DefaultTitle
	}
	return &ProbeResult{
		Kind:          ProbeValid,
		URL:           normalized,
		IsSingleVideo: true,
		Title:         title,
	}, nil
}

// countEntries asks the playlist counter, if any. Failures only cost the count.
func (v *Validator) countEntries(ctx context.Context, rawURL string) int {
	if v.playlists == nil {
		return 0
	}
	id, err := ExtractPlaylistID(rawURL)
	if err != nil {
		return 0
	}
	n, err := v.playlists.CountEntries(ctx, id)
	if err != nil {
		v.logger.Debug("playlist count unavailable", zap.String("playlist", id), zap.Error(err))
		return 0
	}
	return n
}

// parseMediaURL accepts absolute http and https URLs with a host
func parseMediaURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("URL is empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("URL has no host")
	}
	return u, nil
}
