// Package workspace turns configured document sources into registry
// documents and watches their backing files.
package workspace

import (
	"errors"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/storage"
)

var (
	uriRe  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://.+`)
	kindRe = regexp.MustCompile(`^[a-z][a-z0-9+.-]*$`)
)

// DocumentSource describes one document in the configuration. Content is
// either given inline or read from Path under the workspace root.
type DocumentSource struct {
	URI          string `yaml:"uri"`
	Kind         string `yaml:"kind"`
	Path         string `yaml:"path"`
	Content      string `yaml:"content"`
	AuthoringKey string `yaml:"authoring_key"`
}

// Validate validates the document source.
func (s *DocumentSource) Validate() error {
	if err := validation.ValidateStruct(s,
		validation.Field(&s.URI, validation.Required, validation.Match(uriRe).Error("must be an absolute uri")),
		validation.Field(&s.Kind, validation.Required, validation.Match(kindRe)),
	); err != nil {
		return err
	}
	if s.Path != "" && s.Content != "" {
		return errors.New("path and content are mutually exclusive")
	}
	return nil
}

// Load builds documents from sources in order. store is only consulted for
// sources with a Path and may be nil otherwise.
func Load(sources []DocumentSource, store storage.Provider) ([]models.Document, error) {
	docs := make([]models.Document, 0, len(sources))
	for i := range sources {
		src := &sources[i]
		if err := src.Validate(); err != nil {
			return nil, fmt.Errorf("workspace: document %d (%s): %w", i, src.URI, err)
		}

		content := src.Content
		if src.Path != "" {
			if store == nil {
				return nil, fmt.Errorf("workspace: document %s: path set but no workspace root configured", src.URI)
			}
			data, err := store.Read(src.Path)
			if err != nil {
				return nil, fmt.Errorf("workspace: document %s: %w", src.URI, err)
			}
			content = string(data)
		}

		docs = append(docs, models.Document{
			URI:      src.URI,
			Kind:     src.Kind,
			Content:  content,
			Version:  storage.Checksum([]byte(content)),
			Metadata: src.AuthoringKey,
		})
	}
	return docs, nil
}
