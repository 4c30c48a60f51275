package rag

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aqlhr/askaql/internal/log"
)

// Canned answers. Retrieval and generation failures never surface as
// HTTP errors; callers receive one of these instead (see package doc).
const (
	// NoDocumentsAnswer is returned when retrieval yields zero chunks,
	// whether because nothing matched or because the search backend failed.
	NoDocumentsAnswer = "I couldn't find any relevant documents to answer your question. Please try uploading relevant documents first or rephrase your query."

	// apologyAnswer is returned when every provider in the chain failed.
	apologyAnswer = "I encountered an error while processing your question about the documents. Please try rephrasing your query or contact support if the issue persists."
)

// defaultStreamDelay paces the simulated word-group streaming on the
// degraded path.
const defaultStreamDelay = 50 * time.Millisecond

// Retriever performs tenant-scoped KNN search over document chunks.
// Implemented by docstore.Store.
type Retriever interface {
	SearchChunks(ctx context.Context, req Request) ([]Chunk, error)
}

// Generator produces answers from a system prompt and user query.
// Implemented by provider.Chain. Generate returns the name of the
// provider that produced the answer; GenerateStream delivers deltas
// through fn and fails as a whole if the provider stream cannot be
// opened or parsed.
type Generator interface {
	Generate(ctx context.Context, system, user string) (answer, provider string, err error)
	GenerateStream(ctx context.Context, system, user string, fn func(delta string) error) (provider string, err error)
}

// Service is the RAG core. It is stateless across requests and safe for
// concurrent use.
type Service struct {
	retriever   Retriever
	generator   Generator
	logger      log.Logger
	tracer      trace.Tracer
	streamDelay time.Duration
}

// New creates a Service. logger may be nil (defaults to slog.Default()).
func New(retriever Retriever, generator Generator, logger log.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		retriever:   retriever,
		generator:   generator,
		logger:      logger,
		tracer:      otel.Tracer("askaql/rag"),
		streamDelay: defaultStreamDelay,
	}
}

// retrieve runs the chunk search with the soft-fail policy: any backend
// error is logged and collapsed to an empty result so the caller treats
// it as "no answer possible" rather than an outage.
func (s *Service) retrieve(ctx context.Context, req Request) []Chunk {
	ctx, span := s.tracer.Start(ctx, "rag.retrieve",
		trace.WithAttributes(attribute.Int("rag.k", req.K)))
	defer span.End()

	chunks, err := s.retriever.SearchChunks(ctx, req)
	if err != nil {
		s.logger.Error("chunk retrieval failed", "company_id", req.CompanyID, "error", err)
		return nil
	}
	span.SetAttributes(attribute.Int("rag.chunks", len(chunks)))
	return chunks
}

// Answer runs the full non-streaming flow: retrieve, assemble, generate.
// It never returns an error for retrieval or generation failures; those
// degrade to canned answers per the error taxonomy.
func (s *Service) Answer(ctx context.Context, req Request) Response {
	ctx, span := s.tracer.Start(ctx, "rag.answer")
	defer span.End()

	if req.K <= 0 {
		req.K = DefaultK
	}

	chunks := s.retrieve(ctx, req)
	if len(chunks) == 0 {
		return noDocumentsResponse()
	}

	docContext := AssembleContext(chunks)
	citations := BuildCitations(chunks)

	answer, provider := s.generate(ctx, systemPrompt(docContext), req.Query)

	return Response{
		Answer:    answer,
		Citations: citations,
		Usage: Usage{
			TokensIn:  EstimateTokens(req.Query + docContext),
			TokensOut: EstimateTokens(answer),
			Provider:  provider,
		},
	}
}

// generate invokes the provider chain and absorbs total failure into the
// canned apology.
func (s *Service) generate(ctx context.Context, system, user string) (answer, provider string) {
	ctx, span := s.tracer.Start(ctx, "rag.generate")
	defer span.End()

	answer, provider, err := s.generator.Generate(ctx, system, user)
	if err != nil {
		s.logger.Error("all providers failed", "error", err)
		return apologyAnswer, "none"
	}
	span.SetAttributes(attribute.String("rag.provider", provider))
	return answer, provider
}

func noDocumentsResponse() Response {
	return Response{
		Answer:    NoDocumentsAnswer,
		Citations: []Citation{},
		Usage:     Usage{Provider: "none"},
	}
}
