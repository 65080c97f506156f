package processor

import (
	"context"
	"strings"

	"tessgen/internal/corpus"
	"tessgen/internal/models"
	"tessgen/internal/pkg/errors"
	"tessgen/internal/ports"
)

// InputHandler resolves the corpus of a run, inline or from storage.
type InputHandler struct {
	sp ports.StorageProvider
}

func NewInputHandler(sp ports.StorageProvider) *InputHandler {
	return &InputHandler{sp: sp}
}

// Corpus returns the texts of run. Inline texts go through the same
// filtering as a corpus file.
func (ih *InputHandler) Corpus(ctx context.Context, run *models.Run) ([]string, error) {
	if len(run.Texts) > 0 {
		return corpus.Parse(strings.NewReader(strings.Join(run.Texts, "\n")))
	}
	key := strings.TrimSpace(run.CorpusObjectKey)
	if key == "" {
		return nil, errors.Configuration("processor.inputs", "run has neither texts nor corpus_object_key")
	}
	if ih.sp == nil {
		return nil, errors.Configuration("processor.inputs", "no storage provider to fetch corpus from")
	}
	return corpus.Fetch(ctx, ih.sp, key)
}
