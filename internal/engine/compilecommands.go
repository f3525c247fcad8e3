package engine

import (
	"encoding/json"
	"os"

	"github.com/google/renameio"
	"golang.org/x/xerrors"

	"github.com/donaldfilimon/ovo/internal/dag"
)

// compileCommand is one entry of a Clang JSON compilation database.
type compileCommand struct {
	Directory string   `json:"directory"`
	Arguments []string `json:"arguments"`
	File      string   `json:"file"`
	Output    string   `json:"output,omitempty"`
}

// WriteCompileCommands writes a compile_commands.json covering every
// compile node of the current graph. Call after Build (or a dry run) so the
// graph is populated.
func (e *Engine) WriteCompileCommands(path string) error {
	wd, err := os.Getwd()
	if err != nil {
		return xerrors.Errorf("compile commands: %w", err)
	}
	var cmds []compileCommand
	for _, id := range e.graph.IDs() {
		n, err := e.graph.Node(id)
		if err != nil {
			continue
		}
		if n.Kind != dag.Compile && n.Kind != dag.CompileModule {
			continue
		}
		if len(n.Inputs) == 0 || len(n.Argv) == 0 {
			continue
		}
		dir := n.Dir
		if dir == "" {
			dir = wd
		}
		out := ""
		if len(n.Outputs) > 0 {
			out = n.Outputs[len(n.Outputs)-1] // the object, not the BMI
		}
		cmds = append(cmds, compileCommand{
			Directory: dir,
			Arguments: n.Argv,
			File:      n.Inputs[0],
			Output:    out,
		})
	}
	b, err := json.MarshalIndent(cmds, "", "  ")
	if err != nil {
		return xerrors.Errorf("compile commands: %w", err)
	}
	if err := renameio.WriteFile(path, append(b, '\n'), 0644); err != nil {
		return xerrors.Errorf("compile commands: %w", err)
	}
	return nil
}
