package renderer

import (
	"bytes"
	"context"
	stderrors "errors"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"tessgen/internal/config"
	"tessgen/internal/pkg/errors"
)

// Text2Image runs the text2image binary as a child process.
type Text2Image struct {
	opts config.Render
}

func NewText2Image(opts config.Render) *Text2Image {
	if opts.Binary == "" {
		opts.Binary = "text2image"
	}
	return &Text2Image{opts: opts}
}

// Args returns the command line for req, without the binary.
func (t *Text2Image) Args(req Request) []string {
	args := []string{
		"--text", req.TextFile,
		"--outputbase", req.OutputBase,
		"--font", req.Font,
	}
	if t.opts.FontsDir != "" {
		args = append(args, "--fonts_dir", t.opts.FontsDir)
	}
	return append(args,
		"--ptsize", strconv.Itoa(t.opts.PointSize),
		"--leading", strconv.Itoa(t.opts.Leading),
		"--char_spacing", strconv.FormatFloat(t.opts.CharSpacing, 'f', -1, 64),
		"--exposure", strconv.Itoa(t.opts.Exposure),
		"--resolution", strconv.Itoa(t.opts.Resolution),
	)
}

// waitDelay bounds how long Wait keeps reading stderr after the process
// was killed, in case a grandchild still holds the pipe.
const waitDelay = 2 * time.Second

// Render blocks until text2image exits. Canceling ctx kills the process, and
// so does running longer than the configured timeout.
func (t *Text2Image) Render(ctx context.Context, req Request) error {
	runCtx := ctx
	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, t.opts.Binary, t.Args(req)...)
	cmd.WaitDelay = waitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return errors.Invocation(err, "renderer.text2image", "failed to launch "+t.opts.Binary)
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Invocation(ctxErr, "renderer.text2image", "render abandoned")
		}
		if runCtx.Err() != nil {
			return errors.Invocation(runCtx.Err(), "renderer.text2image", "render timed out").
				WithField("timeout", t.opts.Timeout.String())
		}
		detail := strings.TrimSpace(stderr.String())
		var exitErr *exec.ExitError
		if detail == "" || !stderrors.As(err, &exitErr) {
			detail = "text2image failed"
		}
		return errors.Invocation(err, "renderer.text2image", truncateDetail(detail))
	}
	return nil
}
