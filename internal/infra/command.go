// Package infra implements infrastructure concerns (processes, AppleScript, storage, launchd).
package infra

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner abstracts command execution for testing.
type CommandRunner interface {
	// Output executes a command and returns its stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandError carries the stderr of a failed command.
type CommandError struct {
	Name   string
	Err    error
	Stderr string
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Name, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

// RealCommandRunner executes real system commands.
type RealCommandRunner struct{}

// Output executes a command bound to ctx and returns its stdout.
func (r *RealCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, &CommandError{Name: name, Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}
	return out, nil
}

// runAppleScript runs a script through osascript and returns trimmed stdout.
// AppleScript's "missing value" is returned as an empty string.
func runAppleScript(ctx context.Context, runner CommandRunner, script string) (string, error) {
	out, err := runner.Output(ctx, "osascript", "-e", script)
	if err != nil {
		return "", err
	}
	result := strings.TrimSpace(string(out))
	if result == "missing value" {
		return "", nil
	}
	return result, nil
}

// Ensure RealCommandRunner implements CommandRunner.
var _ CommandRunner = (*RealCommandRunner)(nil)
