package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/xhad/speechbuddy/internal/models"
	"github.com/xhad/speechbuddy/internal/types"
)

// ErrEmptyDocument is returned when a source loads but holds no text.
var ErrEmptyDocument = errors.New("document has no content")

// SourceLoader reads local text files, and hands http(s) sources to Web
// when it is set.
type SourceLoader struct {
	Web types.Loader
}

func (l *SourceLoader) Load(ctx context.Context, source string) ([]models.Document, error) {
	var (
		docs []models.Document
		err  error
	)
	if isURL(source) {
		if l.Web == nil {
			return nil, fmt.Errorf("no web loader configured for %s", source)
		}
		docs, err = l.Web.Load(ctx, source)
	} else {
		docs, err = loadFile(ctx, source)
	}
	if err != nil {
		return nil, err
	}

	for _, d := range docs {
		if strings.TrimSpace(d.Content) != "" {
			return docs, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", source, ErrEmptyDocument)
}

func loadFile(ctx context.Context, path string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	loaded, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	docs := make([]models.Document, 0, len(loaded))
	for i, d := range loaded {
		id := name
		if len(loaded) > 1 {
			id = fmt.Sprintf("%s-%d", name, i)
		}
		docs = append(docs, models.Document{
			ID:       id,
			URL:      path,
			Title:    name,
			Content:  d.PageContent,
			Metadata: d.Metadata,
		})
	}
	return docs, nil
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
