package platform

// Package platform contains OS integration and external tooling glue: URL
// validation through the engine probe, playlist inspection, dependency and
// locale lookup, output file cleanup and OS reveal.
