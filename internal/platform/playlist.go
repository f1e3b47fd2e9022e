package platform

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ytget/ytdlp/v2"
)

// Timeout constants
const (
	DefaultPlaylistTimeout = 30 * time.Second
)

// URL parameters
const (
	PlaylistQueryParam = "list"
	PlaylistPath       = "/playlist"
)

// PlaylistCounter reports how many entries a playlist has
type PlaylistCounter interface {
	CountEntries(ctx context.Context, playlistID string) (int, error)
}

// PlaylistInspector counts YouTube playlist entries with the native ytdlp library
type PlaylistInspector struct {
	timeout time.Duration
}

// NewPlaylistInspector creates a new playlist inspector
func NewPlaylistInspector() *PlaylistInspector {
	return &PlaylistInspector{
		timeout: DefaultPlaylistTimeout,
	}
}

// SetTimeout sets the timeout for playlist lookups
func (p *PlaylistInspector) SetTimeout(timeout time.Duration) {
	p.timeout = timeout
}

// CountEntries implements PlaylistCounter
func (p *PlaylistInspector) CountEntries(ctx context.Context, playlistID string) (int, error) {
	if playlistID == "" {
		return 0, fmt.Errorf("empty playlist ID")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to get playlist items: %w", err)
	}
	return len(items), nil
}

// ExtractPlaylistID returns the list parameter of a playlist URL. It supports
// watch URLs with a list parameter as well as playlist pages.
func ExtractPlaylistID(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	values, ok := u.Query()[PlaylistQueryParam]
	if !ok || len(values) == 0 {
		return "", fmt.Errorf("URL does not contain playlist parameter")
	}
	if values[0] == "" {
		return "", fmt.Errorf("empty playlist ID")
	}
	return values[0], nil
}

// IsPlaylistPage reports whether u is a dedicated playlist page, which can be
// classified without asking the engine
func IsPlaylistPage(u *url.URL) bool {
	if strings.TrimSuffix(u.Path, "/") != PlaylistPath {
		return false
	}
	return u.Query().Get(PlaylistQueryParam) != ""
}
