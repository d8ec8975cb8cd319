/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: runner.go
Description: Subprocess execution for external analysis tools. Runs a command with an
optional timeout and returns its combined stdout and stderr as the tool's log. A
non-zero exit status is not an error: whatever the tool printed is still its log.
*/

package analysis

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout is returned when a command runs past its deadline
var ErrTimeout = errors.New("command timed out")

// Command is an executable and its arguments
type Command struct {
	Name string
	Args []string
}

// String renders the command the way a shell would show it
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// CommandRunner executes commands and returns their output
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (string, error)
}

// ExecRunner runs commands as local processes
type ExecRunner struct {
	// Timeout bounds each command. Zero means no limit.
	Timeout time.Duration
}

// NewExecRunner creates a runner with the given per-command timeout
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{Timeout: timeout}
}

// Run executes cmd and returns its combined output with a single trailing
// newline removed
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.WaitDelay = time.Second

	out, err := c.CombinedOutput()
	output := strings.TrimSuffix(string(out), "\n")

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return output, fmt.Errorf("%w: %s", ErrTimeout, cmd.Name)
		}
		return output, ctxErr
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return output, fmt.Errorf("failed to run %s: %w", cmd.Name, err)
	}
	return output, nil
}
