// cmd/fu/commands/check.go
package commands

import (
	"fmt"

	"fu/internal/checker"
	"fu/internal/diagnostics"
	"fu/internal/fixtures"
	"fu/internal/types"
)

// CheckCommand runs the populate/optimize/check passes over a named
// fixture and prints every diagnostic without emitting a binary.
func CheckCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: fu check <fixture>")
	}
	prog, ok := fixtures.Find(args[0])
	if !ok {
		return fmt.Errorf("no such fixture %q (see `fu list`)", args[0])
	}

	diags := diagnostics.NewSink()
	c := checker.New(types.NewBuiltins(), diags)
	c.Run(prog.Nodes)

	if len(diags.All()) == 0 {
		fmt.Println("no diagnostics")
		return nil
	}
	for _, d := range diags.All() {
		fmt.Println(d.String())
	}
	if diags.CountKind(diagnostics.Error) > 0 || diags.CountKind(diagnostics.Critical) > 0 {
		return fmt.Errorf("%s did not check cleanly", args[0])
	}
	return nil
}

// ListCommand prints every fixture name and the source text it stands in
// for (see internal/fixtures).
func ListCommand() {
	fmt.Println("Available fixtures:")
	for _, p := range fixtures.All() {
		fmt.Printf("  %-24s %s\n", p.Name, p.Description)
	}
}
