package main

import (
	"fmt"
	"io"
	"os"
)

// Exit codes
const (
	ExitSuccess        = 0
	ExitGeneralError   = 1
	ExitInvalidArgs    = 2
	ExitConfigError    = 3
	ExitLoginRequired  = 4
	ExitResolveFailed  = 5
	ExitTransferFailed = 6
	ExitStorageError   = 7
	ExitCancelled      = 8
	ExitNotReady       = 9
)

// Replaced in tests.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "share":
		return runShare(cmdArgs)
	case "resume":
		return runResume(cmdArgs)
	case "records":
		return runRecords(cmdArgs)
	case "open":
		return runOpen(cmdArgs)
	case "login":
		return runLogin(cmdArgs)
	case "logout":
		return runLogout(cmdArgs)
	case "services":
		return runServices(cmdArgs)
	case "cleanup":
		return runCleanup(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(stderr, `Usage: yeet <command> [options]

Commands:
  share     Fetch the video behind a share link into the local cache
  resume    Collect background downloads that finished while yeet was not running
  records   List background downloads
  open      Print the file of a finished background download
  login     Store login cookies for a video service
  logout    Remove stored login cookies
  services  List supported services and their login state
  cleanup   Remove a delivered file after it has been shared

Run 'yeet <command> -h' for command-specific help.`)
}
