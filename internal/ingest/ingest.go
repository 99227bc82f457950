// Package ingest orchestrates document uploads: validate, persist raw
// bytes, extract pages, chunk, index, register.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docuery/docuery/internal/chunker"
	"github.com/docuery/docuery/internal/pdfload"
	"github.com/docuery/docuery/internal/registry"
)

var (
	// ErrMisconfigured indicates missing provider credentials.
	ErrMisconfigured = errors.New("OpenAI API key is not configured; set it before uploading documents")
	// ErrUnsupportedFormat indicates an upload with a non-PDF filename.
	ErrUnsupportedFormat = errors.New("only PDF files are supported")
)

// VectorIndex is the subset of the vector store the pipeline needs.
type VectorIndex interface {
	Add(ctx context.Context, chunks []chunker.Chunk) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// Pipeline wires the registry, vector index, splitter and PDF loader
// into the ingestion flow. All dependencies are injected.
type Pipeline struct {
	registry   *registry.Registry
	index      VectorIndex
	splitter   *chunker.Splitter
	loader     pdfload.Loader
	uploadsDir string
	apiKey     string
	logger     *log.Logger
}

// New creates an ingestion pipeline.
func New(reg *registry.Registry, index VectorIndex, splitter *chunker.Splitter, loader pdfload.Loader, uploadsDir, apiKey string, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	}
	return &Pipeline{
		registry:   reg,
		index:      index,
		splitter:   splitter,
		loader:     loader,
		uploadsDir: uploadsDir,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// Ingest validates and indexes one uploaded file, returning its
// metadata. Indexing strictly precedes the registry upsert, so a failure
// never leaves a registry entry with no backing vectors. A failure after
// the raw bytes were persisted may leave an orphaned file; a retry of
// the same upload simply creates a new document id.
func (p *Pipeline) Ingest(ctx context.Context, raw []byte, originalFilename string) (registry.DocumentMetadata, error) {
	var zero registry.DocumentMetadata

	if strings.TrimSpace(p.apiKey) == "" {
		return zero, ErrMisconfigured
	}
	filename := originalFilename
	if filename == "" {
		filename = "uploaded.pdf"
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return zero, fmt.Errorf("%w: received %s", ErrUnsupportedFormat, filename)
	}

	if err := os.MkdirAll(p.uploadsDir, 0o755); err != nil {
		return zero, fmt.Errorf("create uploads dir: %w", err)
	}
	documentID := uuid.NewString()
	storedFilename := documentID + ".pdf"
	destination := filepath.Join(p.uploadsDir, storedFilename)
	if err := os.WriteFile(destination, raw, 0o644); err != nil {
		return zero, fmt.Errorf("persist upload: %w", err)
	}

	meta := registry.DocumentMetadata{
		DocumentID:     documentID,
		Filename:       filename,
		StoredFilename: storedFilename,
		BytesSize:      int64(len(raw)),
		UploadedAt:     time.Now().UTC(),
	}

	pages, err := p.loader.Load(destination)
	if err != nil {
		return zero, fmt.Errorf("extract pages from %s: %w", filename, err)
	}
	chunks, err := p.splitter.Split(pages)
	if err != nil {
		if errors.Is(err, chunker.ErrEmptyDocument) {
			return zero, fmt.Errorf("%w: %s", chunker.ErrEmptyDocument, filename)
		}
		return zero, fmt.Errorf("chunk %s: %w", filename, err)
	}
	// Whitespace-only pages survive extraction but produce no chunks;
	// registering such a document would leave an entry with nothing
	// behind it in the index.
	if len(chunks) == 0 {
		return zero, fmt.Errorf("%w: %s", chunker.ErrEmptyDocument, filename)
	}
	for i := range chunks {
		chunks[i].DocumentID = documentID
		chunks[i].Filename = filename
	}

	if err := p.index.Add(ctx, chunks); err != nil {
		return zero, fmt.Errorf("index %s: %w", filename, err)
	}
	if err := p.registry.Upsert(meta); err != nil {
		return zero, fmt.Errorf("register %s: %w", filename, err)
	}

	p.logger.Printf("ingested %s as %s (%d chunks, %d bytes)", filename, documentID, len(chunks), len(raw))
	return meta, nil
}

// Delete removes one document: registry entry first, then its vectors,
// then the stored raw bytes. Returns false when the id is unknown, in
// which case nothing is touched.
func (p *Pipeline) Delete(ctx context.Context, documentID string) (bool, error) {
	removed, err := p.registry.Remove(documentID)
	if err != nil {
		return false, err
	}
	if removed == nil {
		return false, nil
	}
	if err := p.index.DeleteByDocument(ctx, documentID); err != nil {
		return false, fmt.Errorf("delete vectors for %s: %w", documentID, err)
	}
	p.removeStoredFile(removed.StoredFilename)
	p.logger.Printf("deleted document %s (%s)", documentID, removed.Filename)
	return true, nil
}

// ClearAll deletes every document's vectors and stored bytes, then
// clears the registry, returning the pre-clear count.
func (p *Pipeline) ClearAll(ctx context.Context) (int, error) {
	docs, err := p.registry.List()
	if err != nil {
		return 0, err
	}
	for _, doc := range docs {
		if err := p.index.DeleteByDocument(ctx, doc.DocumentID); err != nil {
			return 0, fmt.Errorf("delete vectors for %s: %w", doc.DocumentID, err)
		}
		p.removeStoredFile(doc.StoredFilename)
	}
	count, err := p.registry.Clear()
	if err != nil {
		return 0, err
	}
	p.logger.Printf("cleared %d documents", count)
	return count, nil
}

func (p *Pipeline) removeStoredFile(storedFilename string) {
	path := filepath.Join(p.uploadsDir, storedFilename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.logger.Printf("warn: remove stored file %s: %v", path, err)
	}
}
