package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"zapmenu/pkg/logger"
)

const version = "0.1.0"

var globalConfigPathOverride string

func main() {
	// A .env next to the binary is the easiest way to carry ZAPMENU_*
	// overrides on a small deployment; absence is fine.
	_ = godotenv.Load()

	globalConfigPathOverride = detectConfigPathFromArgs(os.Args)

	for _, arg := range os.Args {
		if arg == "--debug" || arg == "-d" {
			logger.SetLevel(logger.DEBUG)
			break
		}
	}

	os.Args = normalizeCLIArgs(os.Args)

	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "run":
		runCmd()
	case "login":
		loginCmd()
	case "seed":
		seedCmd()
	case "version", "--version", "-v":
		fmt.Printf("zapmenu v%s\n", version)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printHelp()
		os.Exit(1)
	}
}
