/*
discrip - Extract the assets of CD-ROM era PC games: WAD containers,
InstallShield cabinets, ISO9660 and CUE/BIN discs, AVI cutscenes.
*/
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/hansbonini/discrip/cmd"
)

// Version information (injected at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Check for version flag
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-V") {
		fmt.Printf("discrip %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		fmt.Printf("Go Version: %s\n", runtime.Version())
		os.Exit(0)
	}

	cmd.Execute()
}
