package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const usage = `Usage: api-path-tester <command> [flags]

Commands:
  run         generate dependency-aware paths and execute them against the API (default)
  paths       print the generated paths without executing them
  import      derive endpoint configuration and fixtures from an OpenAPI document
  fixtures    author fixtures for every endpoint with an LLM
  serve-mock  run the bundled mock banking API

Run 'api-path-tester <command> -h' for command flags.
`

func main() {
	command := "run"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	var err error
	switch command {
	case "run":
		err = runCommand(args)
	case "paths":
		err = pathsCommand(args)
	case "import":
		err = importCommand(args)
	case "fixtures":
		err = fixturesCommand(args)
	case "serve-mock":
		err = serveMockCommand(args)
	case "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if err != nil {
		if !errors.Is(err, errUnexpectedVerdicts) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
