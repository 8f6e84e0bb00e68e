package version

import "runtime"

// Build information. Populated at build time via -ldflags:
//
//	-X github.com/jackzampolin/distill/version.GitRelease=...
//	-X github.com/jackzampolin/distill/version.GitCommit=...
//	-X github.com/jackzampolin/distill/version.GitCommitDate=...
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
	GoInfo        = runtime.Version()
)
