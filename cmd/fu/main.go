// cmd/fu/main.go
package main

import (
	"fmt"
	"log"
	"os"

	"fu/cmd/fu/commands"
)

const version = "0.1.0"

// commandAliases maps single-letter shortcuts to their full subcommand
// names.
var commandAliases = map[string]string{
	"b": "build",
	"r": "run",
	"c": "check",
	"l": "list",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}
	rest := args[1:]

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Printf("fu %s\n", version)
	case "build":
		if err := commands.BuildCommand(rest); err != nil {
			log.Fatalf("fu build: %v", err)
		}
	case "check":
		if err := commands.CheckCommand(rest); err != nil {
			log.Fatalf("fu check: %v", err)
		}
	case "run":
		code, err := commands.RunCommand(rest)
		if err != nil {
			log.Fatalf("fu run: %v", err)
		}
		os.Exit(code)
	case "list":
		commands.ListCommand()
	default:
		fmt.Printf("unknown command %q\n\n", cmd)
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println("fu - a small statically-typed language toolchain")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  fu build <fixture> [-o out.fub]   Check and emit a binary   (alias: b)")
	fmt.Println("  fu check <fixture>                Check only, no emit      (alias: c)")
	fmt.Println("  fu run <file.fub> [args...]        Execute a compiled binary (alias: r)")
	fmt.Println("  fu list                            List available fixtures  (alias: l)")
	fmt.Println()
	fmt.Println("fu has no tokenizer or parser of its own; build and check take one of")
	fmt.Println("the fixtures named by `fu list` in place of a source file.")
}
