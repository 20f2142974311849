package cleaner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrElevationDenied is returned when the user refuses or cancels an
// administrator prompt, or no way to elevate exists.
var ErrElevationDenied = errors.New("elevation denied")

// Elevator removes paths with administrator privileges. One call is one
// prompt-guarded invocation; it succeeds or fails as a whole.
type Elevator interface {
	RemoveAll(ctx context.Context, paths []string) error
}

// commandRunner runs name with args, feeding stdin, and returns stderr
type commandRunner func(ctx context.Context, stdin []byte, name string, args ...string) (string, error)

func runCommand(ctx context.Context, stdin []byte, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return strings.TrimSpace(stderr.String()), err
}

// OsascriptElevator uses the macOS administrator dialog
type OsascriptElevator struct {
	run commandRunner
}

// NewOsascriptElevator creates an elevator driven by osascript
func NewOsascriptElevator() *OsascriptElevator {
	return &OsascriptElevator{run: runCommand}
}

// RemoveAll implements Elevator
func (o *OsascriptElevator) RemoveAll(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	script := fmt.Sprintf("do shell script %s with administrator privileges", appleScriptString(removeCommand(paths)))
	stderr, err := o.run(ctx, nil, "osascript", "-e", script)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrElevationDenied, ctx.Err())
		}
		// -128 is userCanceledErr
		if strings.Contains(stderr, "-128") || strings.Contains(stderr, "User canceled") {
			return ErrElevationDenied
		}
		return fmt.Errorf("osascript failed: %w (stderr: %s)", err, stderr)
	}
	return nil
}

// removeCommand builds "rm -rf -- 'p1' 'p2'"
func removeCommand(paths []string) string {
	var b strings.Builder
	b.WriteString("rm -rf --")
	for _, p := range paths {
		b.WriteByte(' ')
		b.WriteString(shellQuote(p))
	}
	return b.String()
}

// shellQuote wraps s in single quotes, so no shell metacharacter in it is live
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// appleScriptString renders s as an AppleScript string literal
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
