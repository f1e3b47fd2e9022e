package logging

// Package logging builds the zap loggers used across the application.
