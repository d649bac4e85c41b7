package main

import (
	"fmt"
	"os"

	"miniappbot/pkg/logger"
)

const version = "0.1.0"
const logo = "🤖"

var (
	globalConfigPathOverride string
	debugMode                bool
)

func main() {
	globalConfigPathOverride = detectConfigPathFromArgs(os.Args)

	for _, arg := range os.Args {
		if arg == "--debug" || arg == "-d" {
			debugMode = true
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
	case "onboard":
		onboardCmd()
	case "run":
		runCmd()
	case "console":
		consoleCmd()
	case "status":
		statusCmd()
	case "version", "--version", "-v":
		fmt.Printf("%s miniappbot v%s\n", logo, version)
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printHelp()
		os.Exit(1)
	}
}
