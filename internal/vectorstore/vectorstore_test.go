package vectorstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/docuery/docuery/internal/chunker"
)

type fakeEmbedder struct {
	err   error
	calls [][]string
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{0.1, 0.2}
	}
	return vecs, nil
}

func TestAdd(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := New(db, &fakeEmbedder{})
	chunks := []chunker.Chunk{
		{Content: "alpha", DocumentID: "doc-1", Filename: "a.pdf", Page: 0},
		{Content: "beta", DocumentID: "doc-1", Filename: "a.pdf", Page: 1},
	}

	mock.ExpectBegin()
	insert := regexp.QuoteMeta(`
INSERT INTO document_chunks (id, document_id, filename, page, content, embedding, created_at)
VALUES ($1,$2,$3,$4,$5,$6::vector,NOW())
`)
	prep := mock.ExpectPrepare(insert)
	prep.ExpectExec().
		WithArgs(sqlmock.AnyArg(), "doc-1", "a.pdf", 0, "alpha", "[0.1,0.2]").
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs(sqlmock.AnyArg(), "doc-1", "a.pdf", 1, "beta", "[0.1,0.2]").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := st.Add(context.Background(), chunks); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAddEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	emb := &fakeEmbedder{}
	st := New(db, emb)
	if err := st.Add(context.Background(), nil); err != nil {
		t.Fatalf("Add(nil): %v", err)
	}
	if len(emb.calls) != 0 {
		t.Fatalf("embedder was called for empty batch")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAddEmbedFailureWritesNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	wantErr := errors.New("quota exceeded")
	st := New(db, &fakeEmbedder{err: wantErr})
	err = st.Add(context.Background(), []chunker.Chunk{{Content: "alpha", DocumentID: "doc-1"}})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected embed error, got %v", err)
	}
	// No Begin/Exec expectations were registered, so any DB touch fails
	// ExpectationsWereMet.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("DB was touched despite embed failure: %v", err)
	}
}

func TestSearchWithFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := New(db, &fakeEmbedder{})
	query := regexp.QuoteMeta(`
SELECT document_id, filename, page, content
FROM document_chunks
WHERE document_id = ANY($2)
ORDER BY embedding <=> $1::vector, seq
LIMIT $3
`)
	rows := sqlmock.NewRows([]string{"document_id", "filename", "page", "content"}).
		AddRow("doc-1", "a.pdf", 0, "alpha").
		AddRow("doc-1", "a.pdf", 1, "beta")
	mock.ExpectQuery(query).
		WithArgs("[0.1,0.2]", sqlmock.AnyArg(), 2).
		WillReturnRows(rows)

	got, err := st.Search(context.Background(), "who signed?", 2, DocumentIDIn("doc-1"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].Content != "alpha" || got[1].Page != 1 {
		t.Fatalf("unexpected results: %#v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchNoResults(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := New(db, &fakeEmbedder{})
	query := regexp.QuoteMeta(`
SELECT document_id, filename, page, content
FROM document_chunks
ORDER BY embedding <=> $1::vector, seq
LIMIT $2
`)
	mock.ExpectQuery(query).
		WithArgs("[0.1,0.2]", 4).
		WillReturnRows(sqlmock.NewRows([]string{"document_id", "filename", "page", "content"}))

	got, err := st.Search(context.Background(), "anything", 4, Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %#v", got)
	}
}

func TestDeleteByDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := New(db, &fakeEmbedder{})

	lookup := regexp.QuoteMeta(`SELECT id FROM document_chunks WHERE document_id = $1`)
	mock.ExpectQuery(lookup).
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("id-1").AddRow("id-2"))

	del := regexp.QuoteMeta(`DELETE FROM document_chunks WHERE id = ANY($1)`)
	mock.ExpectExec(del).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := st.DeleteByDocument(context.Background(), "doc-1"); err != nil {
		t.Fatalf("DeleteByDocument: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteByDocumentNoMatches(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := New(db, &fakeEmbedder{})
	lookup := regexp.QuoteMeta(`SELECT id FROM document_chunks WHERE document_id = $1`)
	mock.ExpectQuery(lookup).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if err := st.DeleteByDocument(context.Background(), "missing"); err != nil {
		t.Fatalf("DeleteByDocument no-op: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
