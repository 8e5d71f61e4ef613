package version

// Set by the linker via -ldflags at release build time.
var (
	GitVersion = "unknown"
	GitCommit  = "unknown"
)
