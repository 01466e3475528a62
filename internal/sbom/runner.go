package sbom

import (
	"context"
	"io"
	"os"
	"os/exec"
)

// Runner executes external commands
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
	LookPath(file string) (string, error)
}

// OSRunner runs commands as child processes. The child's output is streamed
// to Output (os.Stderr when nil) so stdout stays reserved for logs and the report.
type OSRunner struct {
	Output io.Writer
}

// Run executes name in dir and waits for it to exit
func (r OSRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	out := r.Output
	if out == nil {
		out = os.Stderr
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}

// LookPath resolves file against PATH
func (OSRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}
