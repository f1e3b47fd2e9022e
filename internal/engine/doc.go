package engine

// Package engine is the boundary to the external extraction engine (yt-dlp,
// driven through github.com/lrstanley/go-ytdlp). Serialized guards the shared
// execution context and routes interrupts to exactly one execution.
