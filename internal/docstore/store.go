// Package docstore implements the tenant-scoped document chunk store:
// KNN similarity search over pgvector embeddings with metadata filters,
// plus the ingest-side chunk upsert.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"

	"github.com/aqlhr/askaql/internal/log"
	"github.com/aqlhr/askaql/internal/rag"
)

// searchTimeout bounds the vector search so a slow backend cannot hold
// the request open indefinitely.
const searchTimeout = 10 * time.Second

// Querier is the subset of pgxpool.Pool the store needs. Defined by the
// consumer so tests can substitute a lighter implementation.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Embedder turns query or chunk text into an embedding vector.
// Implemented by provider.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store performs vector search over document chunks. Safe for
// concurrent use.
type Store struct {
	db       Querier
	embedder Embedder
	logger   log.Logger
}

// New creates a Store. logger may be nil (defaults to slog.Default()).
func New(db Querier, embedder Embedder, logger log.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, embedder: embedder, logger: logger}
}

// SearchChunks returns up to req.K chunks for req.CompanyID ranked by
// cosine similarity (score = 1 - distance, descending). Filters are
// optional allow-lists; absent fields leave that dimension unfiltered.
// Only chunks belonging to the tenant are ever returned.
func (s *Store) SearchChunks(ctx context.Context, req rag.Request) ([]rag.Chunk, error) {
	if req.K <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", req.K)
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	vec, err := s.embedder.Embed(queryCtx, req.Query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	sql, args, err := buildSearchQuery(req, pgvector.NewVector(vec))
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(queryCtx, sql, args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var chunks []rag.Chunk
	for rows.Next() {
		var (
			chunk      rag.Chunk
			page       pgtype.Int4
			portal     pgtype.Text
			employeeID pgtype.Text
			docType    pgtype.Text
			uploadedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&chunk.DocID, &chunk.Text, &chunk.Score,
			&page, &portal, &employeeID, &docType, &uploadedAt,
			&chunk.Title, &chunk.StoragePath); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		if page.Valid {
			chunk.Page = int(page.Int32)
		}
		chunk.Portal = portal.String
		chunk.EmployeeID = employeeID.String
		chunk.DocType = docType.String
		if uploadedAt.Valid {
			chunk.UploadedAt = uploadedAt.Time
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunk rows: %w", err)
	}

	s.logger.Debug("chunk search complete", "company_id", req.CompanyID, "chunks", len(chunks))
	return chunks, nil
}

// buildSearchQuery assembles the KNN SQL with whatever filters the
// request carries. The embedding is both the ranking key and the score
// source, so it appears once as a parameter.
func buildSearchQuery(req rag.Request, vec pgvector.Vector) (string, []any, error) {
	var b strings.Builder
	b.WriteString(`SELECT doc_id, chunk_text, 1 - (embedding <=> $1::vector) AS score,
       page, portal, employee_id, doc_type, uploaded_at, title, storage_path
  FROM document_chunks
 WHERE company_id = $2`)

	args := []any{vec, req.CompanyID}

	if len(req.Filters.Portal) > 0 {
		args = append(args, req.Filters.Portal)
		fmt.Fprintf(&b, " AND portal = ANY($%d)", len(args))
	}
	if req.Filters.EmployeeID != "" {
		args = append(args, req.Filters.EmployeeID)
		fmt.Fprintf(&b, " AND employee_id = $%d", len(args))
	}
	if len(req.Filters.DocType) > 0 {
		args = append(args, req.Filters.DocType)
		fmt.Fprintf(&b, " AND doc_type = ANY($%d)", len(args))
	}
	if req.Filters.UploadedAfter != "" {
		after, err := time.Parse(time.RFC3339, req.Filters.UploadedAfter)
		if err != nil {
			return "", nil, fmt.Errorf("parsing uploadedAfter %q: %w", req.Filters.UploadedAfter, err)
		}
		args = append(args, after)
		fmt.Fprintf(&b, " AND uploaded_at >= $%d", len(args))
	}

	args = append(args, req.K)
	fmt.Fprintf(&b, " ORDER BY embedding <=> $1::vector LIMIT $%d", len(args))

	return b.String(), args, nil
}

// AddChunk embeds and inserts one pre-chunked document slice for a
// tenant. Used by the ingest path and test fixtures.
func (s *Store) AddChunk(ctx context.Context, companyID string, chunk rag.Chunk) error {
	vec, err := s.embedder.Embed(ctx, chunk.Text)
	if err != nil {
		return fmt.Errorf("embedding chunk: %w", err)
	}

	uploadedAt := pgtype.Timestamptz{Time: chunk.UploadedAt, Valid: !chunk.UploadedAt.IsZero()}
	page := pgtype.Int4{Int32: int32(chunk.Page), Valid: chunk.Page > 0} // #nosec G115 -- page numbers are small
	_, err = s.db.Exec(ctx, `
		INSERT INTO document_chunks
		    (doc_id, company_id, chunk_text, embedding, page, portal, employee_id, doc_type, uploaded_at, title, storage_path)
		VALUES ($1, $2, $3, $4::vector, $5, nullif($6, ''), nullif($7, ''), nullif($8, ''), coalesce($9, now()), $10, $11)`,
		chunk.DocID, companyID, chunk.Text, pgvector.NewVector(vec),
		page, chunk.Portal, chunk.EmployeeID, chunk.DocType, uploadedAt,
		chunk.Title, chunk.StoragePath)
	if err != nil {
		return fmt.Errorf("inserting chunk for %q: %w", chunk.DocID, err)
	}

	s.logger.Debug("chunk added", "doc_id", chunk.DocID, "company_id", companyID)
	return nil
}
