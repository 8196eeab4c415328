package main

import (
	"fmt"
	"os"

	"github.com/alex-galey/restricted-domains/internal/server"
	"github.com/alex-galey/restricted-domains/pkg/fxapp"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Handle version flag before Fx starts
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Printf("restricted-domains version %s (built on %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	server.Version = Version
	fxapp.New().Run()
}
