// Package tmux wraps the tmux operations crew needs: spawning teammate
// processes into panes or windows, injecting text as typed input,
// liveness checks, and output capture.
//
// Crew runs inside the user's existing tmux server; targets are opaque
// pane ids (%N) or window ids (@N) handed back by tmux at spawn time
// and stored in the team record.
package tmux

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Iron-Ham/crew/internal/errors"
)

// Runner executes a tmux command and returns its stdout. It exists so
// tests can substitute a fake for the real binary.
type Runner func(ctx context.Context, args ...string) (string, error)

// execRunner runs the real tmux binary.
func execRunner(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("tmux %s: %s", args[0], msg)
	}
	return stdout.String(), nil
}

// Client issues tmux commands against the current server.
type Client struct {
	run Runner
}

// NewClient creates a Client backed by the tmux binary on PATH.
func NewClient() *Client {
	return &Client{run: execRunner}
}

// NewClientWithRunner creates a Client with a custom Runner, for tests.
func NewClientWithRunner(run Runner) *Client {
	return &Client{run: run}
}

// SpawnPane splits the current window and runs command in the new,
// unfocused pane. Returns the new pane id (%N).
func (c *Client) SpawnPane(ctx context.Context, command string) (string, error) {
	out, err := c.run(ctx, "split-window", "-dP", "-F", "#{pane_id}", command)
	if err != nil {
		return "", errors.Wrap(err, "failed to spawn pane")
	}
	return strings.TrimSpace(out), nil
}

// SpawnWindow creates a new, unfocused window named for the agent and
// runs command in it. Returns the window id (@N).
func (c *Client) SpawnWindow(ctx context.Context, name, command string) (string, error) {
	out, err := c.run(ctx, "new-window", "-dP", "-F", "#{window_id}",
		"-n", fmt.Sprintf("crew | %s", name), command)
	if err != nil {
		return "", errors.Wrap(err, "failed to spawn window")
	}
	return strings.TrimSpace(out), nil
}

// ResolvePane resolves a stored target to an effective pane id. Pane
// ids pass through; window ids resolve to the window's active pane,
// falling back to its first pane.
func (c *Client) ResolvePane(ctx context.Context, target string) (string, error) {
	if target == "" {
		return "", errors.NewValidationError("target", "", "no tmux target recorded")
	}
	if !strings.HasPrefix(target, "@") {
		return target, nil
	}

	out, err := c.run(ctx, "list-panes", "-t", target, "-F", "#{pane_id}\t#{pane_active}")
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve window %s", target)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	first := ""
	for _, line := range lines {
		parts := strings.SplitN(line, "\t", 2)
		if parts[0] == "" {
			continue
		}
		if first == "" {
			first = parts[0]
		}
		if len(parts) == 2 && parts[1] == "1" {
			return parts[0], nil
		}
	}
	if first == "" {
		return "", errors.NewValidationError("target", target, "no panes found for window")
	}
	return first, nil
}

// Inject types text into the target pane and presses Enter. The text is
// sent literally (-l) so key names inside it are not interpreted; Enter
// goes as a separate key event.
func (c *Client) Inject(ctx context.Context, target, text string) error {
	pane, err := c.ResolvePane(ctx, target)
	if err != nil {
		return err
	}
	if _, err := c.run(ctx, "send-keys", "-t", pane, "-l", text); err != nil {
		return errors.Wrapf(err, "failed to inject into %s", pane)
	}
	if _, err := c.run(ctx, "send-keys", "-t", pane, "Enter"); err != nil {
		return errors.Wrapf(err, "failed to send Enter to %s", pane)
	}
	return nil
}

// IsAlive reports whether the target pane exists and its process has
// not exited. A vanished target is dead, not an error.
func (c *Client) IsAlive(ctx context.Context, target string) (bool, error) {
	pane, err := c.ResolvePane(ctx, target)
	if err != nil {
		return false, nil
	}
	out, err := c.run(ctx, "display-message", "-p", "-t", pane, "#{pane_dead}")
	if err != nil {
		return false, nil
	}
	return strings.TrimSpace(out) != "1", nil
}

// Capture returns the last lines of the target pane's output, with
// wrapped lines joined.
func (c *Client) Capture(ctx context.Context, target string, lines int) (string, error) {
	pane, err := c.ResolvePane(ctx, target)
	if err != nil {
		return "", err
	}
	out, err := c.run(ctx, "capture-pane", "-p", "-t", pane, "-S", fmt.Sprintf("-%d", lines), "-J")
	if err != nil {
		return "", errors.Wrapf(err, "failed to capture %s", pane)
	}
	return strings.TrimRight(out, "\n"), nil
}

// Kill destroys the target pane or window. A target that is already
// gone is not an error.
func (c *Client) Kill(ctx context.Context, target string) error {
	cmd := "kill-pane"
	if strings.HasPrefix(target, "@") {
		cmd = "kill-window"
	}
	if _, err := c.run(ctx, cmd, "-t", target); err != nil {
		if alive, _ := c.IsAlive(ctx, target); !alive {
			return nil
		}
		return errors.Wrapf(err, "failed to kill %s", target)
	}
	return nil
}
