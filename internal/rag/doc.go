// Package rag implements the retrieval-augmented answering core:
// tenant-scoped chunk retrieval, context assembly with identifier
// redaction, provider-backed answer generation with fallback, and the
// SSE streaming state machine.
//
// The package owns no storage and performs no writes; retrieved chunks
// are read-only. Retrieval and generation failures are absorbed into
// canned answers by design so that callers never surface infrastructure
// errors to end users.
package rag
