package generator

import (
	"fmt"
	"path/filepath"
	"strconv"
)

const minIndexWidth = 4

// IndexWidth is the zero-padded width used for a run of total jobs: at least
// four digits, wider when the largest index needs it.
func IndexWidth(total int) int {
	if total < 1 {
		return minIndexWidth
	}
	return max(minIndexWidth, len(strconv.Itoa(total-1)))
}

// Naming maps a job index to its artifact base path.
type Naming struct {
	OutputDir string
	ModelName string
	Width     int
}

// BaseName returns "{model}.train_{index}" without directory or extension.
func (n Naming) BaseName(index uint) string {
	return fmt.Sprintf("%s.train_%0*d", n.ModelName, max(n.Width, minIndexWidth), index)
}

// Base returns the output base handed to text2image.
func (n Naming) Base(index uint) string {
	return filepath.Join(n.OutputDir, n.BaseName(index))
}
