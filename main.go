package main

import (
	"fmt"
	"os"
	"strings"

	"patronpress/service"
)

// CliVersion is the version reported by the version command.
const CliVersion = "1.0.0"

var exit = os.Exit

func main() {
	exit(RealMain())
}

// RealMain runs the CLI and returns the process exit code.
func RealMain() int {
	if len(os.Args) < 2 {
		printHelp()
		exit(1)
		return 1
	}

	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "help":
		printHelp()
		return 0
	case "version":
		fmt.Printf("patronpress version %s\n", CliVersion)
		return 0
	default:
		return service.HandleCommand(os.Args[1:])
	}
}

func printHelp() {
	helpText := `Usage: patronpress <command> [options]

Commands:
  help                      Display this help message
  version                   Show version information
  serve                     Run the content ledger service
  init                      Initialize the ledger and record the owner
  clean                     Delete the ledger database
  backup                    Create a binary backup of the database
  restore <file>            Restore the database from a binary backup
  export [file]             Write a JSON snapshot (stdout without a file)
  import <file>             Replace ledger state from a JSON snapshot
  stats                     Print the ledger counters
  audit [--verify]          Print the audit trail, optionally verifying it
  token <account>           Mint an access token for an account
  fund <account> <amount>   Credit an account's wallet
`
	fmt.Println(helpText)
}
