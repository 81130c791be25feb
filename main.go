// Package main is the entry point for the deptrac container assembler.
package main

import (
	"fmt"
	"os"

	"github.com/km-arc/go-deptrac/cmd"
)

// Build information injected via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cmd.SetVersion(fmt.Sprintf("%s (commit: %s)", version, commit))
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
