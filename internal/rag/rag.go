// Package rag retrieves relevant chunks for a question and synthesizes a
// grounded answer with citations.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/docuery/docuery/internal/chunker"
	"github.com/docuery/docuery/internal/vectorstore"
	"github.com/docuery/docuery/provider"
)

const (
	// fallbackAnswer is returned verbatim when retrieval finds nothing;
	// the language model is not invoked in that case.
	fallbackAnswer = "I could not find relevant context in the uploaded documents. Try rephrasing your question."

	systemPrompt = "You answer questions only using provided document context. " +
		"If the answer is not in context, clearly say you do not know. " +
		"For names, organizations, titles, IDs, and dates, copy exact spelling from context. " +
		"Do not transliterate, normalize, or correct spelling."

	// maxHistoryTurns bounds how many trailing history turns are
	// replayed. Assistant turns are dropped so the model is not primed
	// by its own prior, possibly wrong, phrasing.
	maxHistoryTurns = 8

	// snippetLength bounds citation snippets.
	snippetLength = 220

	// DefaultTopK is the default number of chunks retrieved per query.
	DefaultTopK = 4
)

var (
	// ErrMisconfigured indicates missing provider credentials.
	ErrMisconfigured = errors.New("OpenAI API key is not configured; set it before using chat")
	// ErrEmptyMessage indicates a blank chat message.
	ErrEmptyMessage = errors.New("message cannot be empty")
)

// HistoryItem is one prior conversation turn.
type HistoryItem struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Citation points a part of the answer back at its source chunk.
type Citation struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Page       *int   `json:"page,omitempty"` // 1-based for presentation
	Snippet    string `json:"snippet"`
}

// Response is a synthesized answer with its supporting citations.
type Response struct {
	Answer          string     `json:"answer"`
	Citations       []Citation `json:"citations"`
	UsedDocumentIDs []string   `json:"used_document_ids"`
}

// Retriever is the subset of the vector store the engine needs.
type Retriever interface {
	Search(ctx context.Context, query string, k int, filter vectorstore.Filter) ([]chunker.Chunk, error)
}

// Chatter invokes the language model once per question.
type Chatter interface {
	ChatCompletion(ctx context.Context, messages []provider.Message) (string, error)
}

// Engine answers questions over the indexed corpus.
type Engine struct {
	retriever Retriever
	llm       Chatter
	apiKey    string
	topK      int
	logger    *log.Logger
}

// NewEngine creates a RAG engine. All dependencies are injected.
func NewEngine(retriever Retriever, llm Chatter, apiKey string, topK int, logger *log.Logger) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[RAG] ", log.LstdFlags)
	}
	return &Engine{
		retriever: retriever,
		llm:       llm,
		apiKey:    apiKey,
		topK:      topK,
		logger:    logger,
	}
}

// Retrieve fetches the top-K chunks most similar to query, optionally
// restricted to the given document ids. An empty result is a valid
// outcome signaling "no relevant context".
func (e *Engine) Retrieve(ctx context.Context, query string, documentIDs []string) ([]chunker.Chunk, error) {
	filter := vectorstore.Filter{}
	if len(documentIDs) > 0 {
		filter = vectorstore.DocumentIDIn(documentIDs...)
	}
	return e.retriever.Search(ctx, query, e.topK, filter)
}

// Answer retrieves context for message, synthesizes a grounded answer,
// applies spelling correction and attaches citations.
func (e *Engine) Answer(ctx context.Context, message string, documentIDs []string, history []HistoryItem) (Response, error) {
	if strings.TrimSpace(e.apiKey) == "" {
		return Response{}, ErrMisconfigured
	}
	if strings.TrimSpace(message) == "" {
		return Response{}, ErrEmptyMessage
	}

	docs, err := e.Retrieve(ctx, message, documentIDs)
	if err != nil {
		return Response{}, fmt.Errorf("retrieve context: %w", err)
	}
	if len(docs) == 0 {
		return Response{
			Answer:          fallbackAnswer,
			Citations:       []Citation{},
			UsedDocumentIDs: []string{},
		}, nil
	}

	contents := make([]string, len(docs))
	for i, d := range docs {
		contents[i] = d.Content
	}
	contextText := strings.Join(contents, "\n\n")
	hints := ExtractSpellingHints(contextText)

	answer, err := e.llm.ChatCompletion(ctx, buildMessages(contextText, hints, message, history))
	if err != nil {
		return Response{}, fmt.Errorf("synthesize answer: %w", err)
	}
	answer = CorrectAnswerSpelling(answer, hints)

	citations := make([]Citation, 0, len(docs))
	usedSet := make(map[string]struct{})
	for _, d := range docs {
		if d.DocumentID != "" {
			usedSet[d.DocumentID] = struct{}{}
		}
		page := d.Page + 1
		filename := d.Filename
		if filename == "" {
			filename = "Document"
		}
		citations = append(citations, Citation{
			DocumentID: d.DocumentID,
			Filename:   filename,
			Page:       &page,
			Snippet:    truncate(d.Content, snippetLength),
		})
	}
	used := make([]string, 0, len(usedSet))
	for id := range usedSet {
		used = append(used, id)
	}
	sort.Strings(used)

	return Response{Answer: answer, Citations: citations, UsedDocumentIDs: used}, nil
}

// buildMessages assembles the grounding prompt: system instruction, the
// last maxHistoryTurns user-authored turns, then context + hints +
// question as a single user message.
func buildMessages(contextText string, hints []string, message string, history []HistoryItem) []provider.Message {
	messages := []provider.Message{{Role: provider.RoleSystem, Content: systemPrompt}}

	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	for _, item := range history {
		if strings.ToLower(item.Role) == provider.RoleAssistant {
			continue
		}
		messages = append(messages, provider.Message{Role: provider.RoleUser, Content: item.Text})
	}

	hintBlock := "- (none extracted)"
	if len(hints) > 0 {
		lines := make([]string, len(hints))
		for i, h := range hints {
			lines[i] = "- " + h
		}
		hintBlock = strings.Join(lines, "\n")
	}

	messages = append(messages, provider.Message{
		Role: provider.RoleUser,
		Content: fmt.Sprintf(
			"Document context:\n%s\n\nExact spellings extracted from the context (reuse verbatim if referenced):\n%s\n\nQuestion:\n%s",
			contextText, hintBlock, message,
		),
	})
	return messages
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
