package cmd

import "fmt"

// Version information (injected at build time via ldflags).
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// runVersion displays version information.
func runVersion() {
	fmt.Printf("askaql %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
