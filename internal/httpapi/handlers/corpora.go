package handlers

import (
	"io"
	"net/http"
	"path"

	"tessgen/internal/corpus"
	"tessgen/internal/httpkit"
	"tessgen/internal/models"
	"tessgen/internal/pkg/errors"
	"tessgen/internal/ports"
)

const maxCorpusUpload = 64 << 20

// UploadCorpus stores a multipart "file" as a corpus object. The returned
// object_key is what a run's corpus_object_key refers to.
func (h *Handler) UploadCorpus(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxCorpusUpload); err != nil {
		return errors.Validation("invalid multipart form")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return errors.ValidationField("file", "file is required")
	}
	defer file.Close()

	// Reject files that would only produce an empty run.
	texts, err := corpus.Parse(file)
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return errors.ValidationField("file", "corpus has no texts")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "api.upload_corpus", "rewind upload")
	}

	key := path.Join("corpora", models.NewID()+".txt")
	out, err := h.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   key,
		ContentType: "text/plain; charset=utf-8",
		Reader:      file,
		Size:        header.Size,
	})
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "api.upload_corpus", "storage put failed")
	}

	httpkit.WriteJSON(w, http.StatusCreated, map[string]any{
		"corpus": map[string]any{
			"object_key": out.ObjectKey,
			"provider":   h.sp.Provider(),
			"texts":      len(texts),
			"size_bytes": out.Size,
		},
	})
	return nil
}
