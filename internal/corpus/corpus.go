// Package corpus reads the text corpus: one payload per line, with blank
// lines and '#' comments skipped.
package corpus

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"tessgen/internal/pkg/errors"
	"tessgen/internal/ports"
)

const maxLineBytes = 1 << 20

// Parse returns the payload lines of r in order. Lines are trimmed.
func Parse(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var texts []string
	for sc.Scan() {
		if line, ok := Line(sc.Text()); ok {
			texts = append(texts, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeConfiguration, "corpus.parse", "read corpus")
	}
	return texts, nil
}

// Line trims one corpus line and reports whether it is a payload, that is
// neither blank nor a '#' comment.
func Line(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "#") {
		return "", false
	}
	return s, true
}

// LoadFile parses the corpus file at path. A missing or unreadable file is
// a configuration error.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeConfiguration, "corpus.load", "open corpus file").
			WithField("path", path)
	}
	defer f.Close()
	return Parse(f)
}

// Fetch downloads objectKey from sp and parses it.
func Fetch(ctx context.Context, sp ports.StorageProvider, objectKey string) ([]string, error) {
	rc, _, _, err := sp.GetObject(ctx, objectKey)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeConfiguration, "corpus.fetch", "download corpus").
			WithField("object_key", objectKey).
			WithField("provider", sp.Provider())
	}
	defer rc.Close()
	return Parse(rc)
}
