package api

// Version identifies the running build in responses and headers.
const Version = "1.0.0"

// Build metadata, injected at build time via -ldflags.
var (
	GitCommit = ""
	BuildTime = ""
)
