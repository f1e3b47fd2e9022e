package history

// Package history records finished jobs in a local SQLite database.
