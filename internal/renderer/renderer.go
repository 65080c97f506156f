// Package renderer invokes text2image, locally or through a render service.
package renderer

import (
	"context"
	"unicode/utf8"

	"tessgen/internal/config"
	"tessgen/internal/pkg/errors"
)

// Request is one text2image invocation.
type Request struct {
	// TextFile is the staged UTF-8 text. The caller owns and removes it.
	TextFile string
	Text     string
	Font     string
	// OutputBase is the artifact path without extension.
	OutputBase string
}

// Client renders one request. Any returned error is an invocation failure.
type Client interface {
	Render(ctx context.Context, req Request) error
}

// New builds the client selected by cfg.Mode.
func New(cfg config.Render) (Client, error) {
	switch cfg.Mode {
	case "", config.RenderModeExec:
		return NewText2Image(cfg), nil
	case config.RenderModeHTTP:
		if cfg.HTTPBaseURL == "" {
			return nil, errors.Configuration("renderer.new", "RENDERER_HTTP_BASEURL is required for http mode")
		}
		return NewHTTPClient(cfg), nil
	default:
		return nil, errors.Configuration("renderer.new", "unknown renderer mode: "+cfg.Mode)
	}
}

// maxDetail caps the captured failure output kept in a diagnostic, in bytes.
const maxDetail = 2000

// truncateDetail cuts s to at most maxDetail bytes on a rune boundary.
func truncateDetail(s string) string {
	if len(s) <= maxDetail {
		return s
	}
	cut := maxDetail
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
