// Package api implements the JSON HTTP surface for document Q&A.
//
// Routes are served from a stdlib http.ServeMux behind a middleware
// stack (outermost first): recovery → request ID → logging → CORS →
// rate limit. Health probes live outside the stack so orchestrator
// checks are never rate limited or logged per request.
//
// Error responses use a single JSON shape: {"error": "...", "details": "..."}
// with details omitted when empty. Retrieval and generation failures are
// deliberately NOT HTTP errors — the RAG service absorbs them into canned
// answers, and this package only maps auth, validation, and transport
// failures to status codes.
package api
