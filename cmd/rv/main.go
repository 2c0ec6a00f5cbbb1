package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/contriboss/rv/cmd/rv/commands"
	"github.com/contriboss/rv/internal/logger"
)

var (
	version     = "0.1.0"
	buildCommit = "unknown"
)

// Exit codes: 0 success, 2 argument error, 1 anything else.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

func main() {
	if os.Getenv("RV_VERBOSE") != "" {
		logger.SetupLogger(true)
	}

	if len(os.Args) < 2 {
		printHelp()
		os.Exit(exitUsage)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "--help", "-h", "help":
		printHelp()
	case "--version", "-V", "version":
		fmt.Printf("rv %s (%s)\n", version, buildCommit)
	case "ruby":
		err = commands.RunRuby(args)
	case "tool":
		err = commands.RunTool(args)
	case "run":
		err = commands.RunScript(args)
	case "shell":
		err = commands.RunShell(args)
	case "ci":
		err = commands.RunCI(args)
	case "cache":
		err = commands.RunCache(args)
	case "selfupdate":
		err = commands.RunSelfUpdate(args, version)
	default:
		fmt.Fprintf(os.Stderr, "rv: unknown command %q\n\n", cmd)
		printHelp()
		os.Exit(exitUsage)
	}

	if err != nil {
		var usage *commands.UsageError
		fmt.Fprintln(os.Stderr, errStyle.Render("error:")+" "+err.Error())
		if commands.AsUsageError(err, &usage) {
			os.Exit(exitUsage)
		}
		os.Exit(exitError)
	}
	os.Exit(exitOK)
}

func printHelp() {
	fmt.Print(`rv - Ruby version and tool manager

Usage: rv <command> [arguments]

Commands:
  ruby list                 List installed Ruby interpreters
  ruby pin <version>        Write .ruby-version in the current directory
  ruby find [request]       Show the Ruby a request resolves to
  ruby dir                  Print the rubies directory
  tool install <gem>        Install a gem as a standalone tool
  tool list                 List installed tools
  tool uninstall <gem>      Remove an installed tool
  run <script.rb> [args]    Run a Ruby script with the requested Ruby
  shell init <shell>        Print shell integration code
  shell env                 Print the environment for the active Ruby
  ci                        Verify the lockfile's checksums against the cache
  cache stats               Show cache usage
  cache clean               Remove the cache directory
  selfupdate                Update rv itself

Environment:
  RV_CACHE_DIR     Override the cache location
  RV_NO_CACHE      Use a temporary cache for this invocation
  RV_DATA_DIR      Override where rubies and tools are installed
  RV_LOG_LEVEL     debug, info, warn, error
`)
}
