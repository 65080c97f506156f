package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"tessgen/internal/config"
	contracts "tessgen/internal/contracts/renderer/v0"
	"tessgen/internal/pkg/errors"
)

// HTTPClient forwards jobs to a render service that owns text2image.
type HTTPClient struct {
	baseURL string
	opts    config.Render
	client  *http.Client
}

func NewHTTPClient(opts config.Render) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(opts.HTTPBaseURL, "/"),
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
	}
}

func (c *HTTPClient) Render(ctx context.Context, req Request) error {
	spec := contracts.Text2ImageSpec{
		Text:       req.Text,
		Font:       req.Font,
		OutputBase: req.OutputBase,
		Options: contracts.Options{
			PointSize:   c.opts.PointSize,
			Leading:     c.opts.Leading,
			CharSpacing: c.opts.CharSpacing,
			Exposure:    c.opts.Exposure,
			Resolution:  c.opts.Resolution,
			FontsDir:    c.opts.FontsDir,
		},
	}
	return c.post(ctx, "/render/text2image", spec)
}

func (c *HTTPClient) post(ctx context.Context, path string, spec any) error {
	body, err := json.Marshal(spec)
	if err != nil {
		return errors.Wrap(err, "renderer.http", "encode spec")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Invocation(err, "renderer.http", "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return errors.Invocation(err, "renderer.http", "renderer unreachable")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, maxDetail))
		detail := strings.TrimSpace(string(snippet))
		return errors.Invocation(fmt.Errorf("renderer http %d", res.StatusCode), "renderer.http", detail)
	}
	return nil
}
