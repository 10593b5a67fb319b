package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// ExecCapturer shells out to an external capture tool (for example a
// headless screenshot script) that writes a JPEG to Path, then
// grayscales and recompresses the artifact like the in-browser
// renderer. The artifact is removed before each run so a stale capture
// can never be mistaken for a fresh one; the command's success is
// still judged by its exit status and the read-back, not by the file's
// existence.
type ExecCapturer struct {
	// Command is the argv of the capture tool. The target URL is
	// appended as the final argument.
	Command []string

	// Path is where the tool writes its capture. Default: "screenshot.jpg".
	Path string

	// Quality for the grayscale re-encode. Default: 42.
	Quality int

	// Timeout bounds the external process. Default: 60s.
	Timeout time.Duration

	Logger *slog.Logger
}

func (c *ExecCapturer) defaults() {
	if c.Path == "" {
		c.Path = "screenshot.jpg"
	}
	if c.Quality <= 0 {
		c.Quality = 42
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Capture runs the tool against url and returns the processed snapshot.
func (c *ExecCapturer) Capture(ctx context.Context, url string) (*Snapshot, error) {
	c.defaults()
	if len(c.Command) == 0 {
		return nil, fmt.Errorf("render: exec capturer has no command")
	}

	if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("render: clear stale artifact: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	args := append(append([]string{}, c.Command[1:]...), url)
	cmd := exec.CommandContext(runCtx, c.Command[0], args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("render: capture tool failed: %w (output: %s)", err, truncateOutput(out))
	}

	raw, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, fmt.Errorf("render: capture tool produced no artifact: %w", err)
	}

	data, w, h, err := compressGray(raw, c.Quality, 0)
	if err != nil {
		return nil, err
	}

	snap, err := writeSnapshot(c.Path, data, w, h)
	if err != nil {
		return nil, err
	}

	c.Logger.Debug("render: external capture complete", "url", url, "bytes", len(data))
	return snap, nil
}

func truncateOutput(out []byte) string {
	const max = 512
	if len(out) <= max {
		return string(out)
	}
	return string(out[:max]) + "..."
}
