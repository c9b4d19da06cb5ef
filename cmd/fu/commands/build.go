// cmd/fu/commands/build.go
package commands

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"fu/internal/ast"
	"fu/internal/checker"
	"fu/internal/diagnostics"
	"fu/internal/emitter"
	"fu/internal/fixtures"
	"fu/internal/types"
)

// optimizeAll applies the constant-folding pass to every top-level node,
// the same transformation checker.Run performs internally before checking.
// It is re-run here so the emitter lowers the identical folded tree the
// checker validated, rather than the as-declared one.
func optimizeAll(nodes []ast.Node) []ast.Node {
	out := make([]ast.Node, len(nodes))
	for i, n := range nodes {
		out[i] = checker.Optimize(n)
	}
	return out
}

// BuildCommand runs the populate/optimize/check/emit pipeline over a named
// fixture program and writes the resulting binary. Source text never
// reaches this module (the tokenizer and parser are an external
// collaborator), so the fixture name stands in for the file a real
// `fu build` would read.
func BuildCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: fu build <fixture> [-o out.fub]")
	}
	name := args[0]
	out := name + ".fub"
	for i := 1; i < len(args)-1; i++ {
		if args[i] == "-o" {
			out = args[i+1]
		}
	}

	prog, ok := fixtures.Find(name)
	if !ok {
		return fmt.Errorf("no such fixture %q (see `fu list`)", name)
	}

	diags := diagnostics.NewSink()
	c := checker.New(types.NewBuiltins(), diags)
	c.Run(prog.Nodes)
	for _, d := range diags.All() {
		fmt.Fprintln(os.Stderr, d.String())
	}
	if diags.HasErrors() {
		return fmt.Errorf("build failed: %s did not check cleanly", name)
	}

	code, err := emitter.Emit(optimizeAll(prog.Nodes))
	if err != nil {
		return fmt.Errorf("emit failed: %w", err)
	}

	if err := os.WriteFile(out, code, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	fmt.Printf("wrote %s (%s) to %s\n", humanize.Bytes(uint64(len(code))), name, out)
	return nil
}
