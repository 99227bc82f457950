// Package registry persists document metadata as a JSON file. It has no
// knowledge of document content; the vector index owns that.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DocumentMetadata describes one ingested file. Entries are immutable
// after creation except by deletion.
type DocumentMetadata struct {
	DocumentID     string    `json:"document_id"`
	Filename       string    `json:"filename"`
	StoredFilename string    `json:"stored_filename"`
	BytesSize      int64     `json:"bytes_size"`
	UploadedAt     time.Time `json:"uploaded_at"`
}

// Registry stores the document list at a fixed path. Every operation
// reads the whole file, mutates in memory and rewrites the whole file;
// a mutex serializes mutations so concurrent writers cannot lose each
// other's updates.
type Registry struct {
	path string
	mu   sync.Mutex
}

// New creates a registry backed by the file at path. The file is lazily
// created as an empty list on first access.
func New(path string) *Registry {
	return &Registry{path: path}
}

// List returns all known documents. An absent store file is equivalent
// to an empty list.
func (r *Registry) List() ([]DocumentMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Upsert replaces any existing entry sharing the document id, else
// appends.
func (r *Registry) Upsert(doc DocumentMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs, err := r.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range docs {
		if docs[i].DocumentID == doc.DocumentID {
			docs[i] = doc
			replaced = true
			break
		}
	}
	if !replaced {
		docs = append(docs, doc)
	}
	return r.write(docs)
}

// Remove deletes the entry with the given document id and returns it,
// or nil when no such entry exists.
func (r *Registry) Remove(documentID string) (*DocumentMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs, err := r.load()
	if err != nil {
		return nil, err
	}
	var removed *DocumentMetadata
	kept := docs[:0]
	for i := range docs {
		if docs[i].DocumentID == documentID {
			d := docs[i]
			removed = &d
			continue
		}
		kept = append(kept, docs[i])
	}
	if removed == nil {
		return nil, nil
	}
	if err := r.write(kept); err != nil {
		return nil, err
	}
	return removed, nil
}

// Clear removes all entries and returns how many were removed.
func (r *Registry) Clear() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs, err := r.load()
	if err != nil {
		return 0, err
	}
	if err := r.write(nil); err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (r *Registry) load() ([]DocumentMetadata, error) {
	if err := r.ensureFile(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var docs []DocumentMetadata
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	return docs, nil
}

func (r *Registry) write(docs []DocumentMetadata) error {
	if docs == nil {
		docs = []DocumentMetadata{}
	}
	payload, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := os.WriteFile(r.path, payload, 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

func (r *Registry) ensureFile() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	if _, err := os.Stat(r.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat registry: %w", err)
	}
	if err := os.WriteFile(r.path, []byte("[]"), 0o644); err != nil {
		return fmt.Errorf("init registry: %w", err)
	}
	return nil
}
