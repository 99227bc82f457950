// Package chunker splits extracted document pages into overlapping
// windows suitable for embedding.
package chunker

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the default window size in characters.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters shared by
// consecutive windows.
const DefaultChunkOverlap = 200

// ErrEmptyDocument indicates a document with no extractable pages.
// Callers must reject the upload rather than index nothing.
var ErrEmptyDocument = errors.New("could not extract text from document")

// Page is one unit of extracted document text with its 0-based index.
type Page struct {
	Text  string
	Index int
}

// Chunk is a bounded slice of a document's text, the unit stored in and
// retrieved from the vector index.
type Chunk struct {
	Content    string
	DocumentID string
	Filename   string
	Page       int // 0-based source page index
}

// Splitter recursively splits text on a priority list of separators,
// producing windows of at most chunkSize characters with chunkOverlap
// characters shared across consecutive windows.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewSplitter creates a splitter. Non-positive sizes fall back to the
// defaults; an overlap that would reach the chunk size is clamped.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   []string{"\n\n", "\n", ". ", "? ", "! ", " ", ""},
	}
}

// Split chunks every page independently, so each emitted chunk keeps the
// page index of the text it was sliced from. A chunk that would span a
// page boundary is attributed to the page where it starts. Empty chunks
// are never emitted.
func (s *Splitter) Split(pages []Page) ([]Chunk, error) {
	if len(pages) == 0 {
		return nil, ErrEmptyDocument
	}
	var chunks []Chunk
	for _, page := range pages {
		for _, piece := range s.splitText(page.Text, s.separators) {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			chunks = append(chunks, Chunk{Content: piece, Page: page.Index})
		}
	}
	return chunks, nil
}

func (s *Splitter) splitText(text string, separators []string) []string {
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}

	sep := ""
	var rest []string
	for i, cand := range separators {
		if cand == "" {
			sep, rest = "", nil
			break
		}
		if strings.Contains(text, cand) {
			sep, rest = cand, separators[i+1:]
			break
		}
	}

	var splits []string
	if sep == "" {
		// Character-level split; merging below restores the overlap.
		splits = make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			splits = append(splits, string(r))
		}
	} else {
		splits = splitKeepSeparator(text, sep)
	}

	var out []string
	var good []string
	for _, piece := range splits {
		if utf8.RuneCountInString(piece) <= s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.mergeSplits(good)...)
			good = nil
		}
		out = append(out, s.splitText(piece, rest)...)
	}
	if len(good) > 0 {
		out = append(out, s.mergeSplits(good)...)
	}
	return out
}

// mergeSplits greedily packs pieces into windows of at most chunkSize
// characters, retaining trailing pieces totalling at most chunkOverlap
// characters as the start of the next window.
func (s *Splitter) mergeSplits(splits []string) []string {
	var docs []string
	var window []string
	total := 0
	for _, piece := range splits {
		n := utf8.RuneCountInString(piece)
		if total+n > s.chunkSize && len(window) > 0 {
			docs = appendDoc(docs, window)
			for total > s.chunkOverlap || (total+n > s.chunkSize && total > 0) {
				total -= utf8.RuneCountInString(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += n
	}
	return appendDoc(docs, window)
}

func appendDoc(docs []string, window []string) []string {
	doc := strings.TrimSpace(strings.Join(window, ""))
	if doc == "" {
		return docs
	}
	return append(docs, doc)
}

// splitKeepSeparator splits text by sep, keeping the separator attached
// to the preceding piece so sentence punctuation is not lost.
func splitKeepSeparator(text, sep string) []string {
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 {
			p += sep
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
