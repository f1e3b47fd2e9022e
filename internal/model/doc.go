package model

// Package model defines domain data structures shared across the app: job
// states and their transition graph, output specifications, progress
// snapshots, and the categorized error type.
