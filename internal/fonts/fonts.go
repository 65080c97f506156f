// Package fonts supplies the ordered list of font variants a run renders with.
package fonts

import "strings"

var defaultCatalog = []string{
	"IPAexGothic",
	"IPAexMincho",
	"TakaoGothic",
	"TakaoMincho",
	"TakaoPGothic",
	"Noto Sans CJK JP",
	"Noto Serif CJK JP",
}

// DefaultCatalog returns the Japanese fonts used when none are configured.
func DefaultCatalog() []string {
	out := make([]string, len(defaultCatalog))
	copy(out, defaultCatalog)
	return out
}

// Resolve returns configured trimmed and without blanks, or the default
// catalog when configured is nil. Repeats are kept: every entry is one
// variant. An explicitly empty list stays empty so that the run is rejected
// instead of silently using the catalog.
func Resolve(configured []string) []string {
	if configured == nil {
		return DefaultCatalog()
	}
	out := make([]string, 0, len(configured))
	for _, f := range configured {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
