// cmd/fu/commands/run.go
package commands

import (
	"fmt"
	"os"

	"fu/internal/binfmt"
	"fu/internal/vm"
)

// RunCommand loads a compiled binary and executes it on the virtual
// machine, passing the remaining arguments through as argv. It returns the
// process exit code derived from the program's return value.
func RunCommand(args []string) (int, error) {
	if len(args) == 0 {
		return 1, fmt.Errorf("usage: fu run <file.fub> [args...]")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return 1, fmt.Errorf("reading %s: %w", args[0], err)
	}
	b, err := binfmt.Decode(data)
	if err != nil {
		return 1, fmt.Errorf("decoding %s: %w", args[0], err)
	}
	if b.IsLibrary {
		return 1, fmt.Errorf("%s is a library binary and has no entrypoint", args[0])
	}
	code, err := vm.New(b).Run(args[1:])
	if err != nil {
		return 1, fmt.Errorf("runtime error: %w", err)
	}
	return code, nil
}
