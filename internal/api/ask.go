package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aqlhr/askaql/internal/auth"
	"github.com/aqlhr/askaql/internal/log"
	"github.com/aqlhr/askaql/internal/rag"
	"github.com/aqlhr/askaql/internal/sse"
)

// maxBodyBytes caps the request body. Questions are short; anything
// bigger is a client bug or abuse.
const maxBodyBytes = 1 << 20

// AskService answers document questions. Satisfied by *rag.Service.
type AskService interface {
	Answer(ctx context.Context, req rag.Request) rag.Response
	Stream(ctx context.Context, req rag.Request, emit rag.EmitFunc) (*rag.Response, error)
}

type askHandler struct {
	svc      AskService
	verifier auth.Verifier
	logger   log.Logger
}

// tokenPayload is the data body of a "token" SSE event.
type tokenPayload struct {
	Delta string `json:"delta"`
}

// citationsPayload is the data body of a "citations" SSE event.
type citationsPayload struct {
	Citations []rag.Citation `json:"citations"`
}

// donePayload is the data body of the terminal "done" SSE event.
type donePayload struct {
	Done bool `json:"done"`
}

// ask handles POST /v1/ask. Method checking is manual so the 405 body
// matches the JSON error shape (the ServeMux default is plain text) and
// OPTIONS preflight can pass through the CORS middleware.
func (h *askHandler) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "", h.logger)
		return
	}

	ctx := r.Context()

	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "", h.logger)
		return
	}
	user, err := h.verifier.VerifyToken(ctx, token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "", h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req rag.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", "", h.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error", err.Error(), h.logger)
		return
	}

	if req.CompanyID == "" || req.Query == "" {
		writeError(w, http.StatusBadRequest, "Missing companyId or query", "", h.logger)
		return
	}
	if req.K < 0 {
		writeError(w, http.StatusBadRequest, "Invalid k", "k must be positive", h.logger)
		return
	}

	requestID, _ := requestIDFromContext(ctx)
	h.logger.Info("ask request",
		"company_id", req.CompanyID,
		"user_id", user.ID,
		"k", req.K,
		"stream", req.Stream,
		"request_id", requestID,
	)

	if !req.Stream {
		resp := h.svc.Answer(ctx, req)
		writeJSON(w, http.StatusOK, resp, h.logger)
		return
	}

	h.stream(w, r, req)
}

// stream runs the SSE branch. The SSE writer is created lazily on the
// first event so the zero-results short-circuit can still answer with a
// plain JSON body.
func (h *askHandler) stream(w http.ResponseWriter, r *http.Request, req rag.Request) {
	var sw *sse.Writer

	emit := func(e rag.Event) error {
		if sw == nil {
			var err error
			sw, err = sse.NewWriter(w)
			if err != nil {
				return err
			}
		}
		switch e.Type {
		case rag.EventToken:
			return sw.WriteEvent(rag.EventToken, tokenPayload{Delta: e.Delta})
		case rag.EventCitations:
			return sw.WriteEvent(rag.EventCitations, citationsPayload{Citations: e.Citations})
		case rag.EventDone:
			return sw.WriteEvent(rag.EventDone, donePayload{Done: true})
		default:
			return sw.WriteEvent(rag.EventError, ErrorResponse{Error: "stream error"})
		}
	}

	resp, err := h.svc.Stream(r.Context(), req, emit)
	if resp != nil {
		// No matching documents: answer as plain JSON even though the
		// client asked for a stream.
		writeJSON(w, http.StatusOK, resp, h.logger)
		return
	}
	if err != nil {
		// Emission failed mid-stream. If no event was ever written we can
		// still send a proper error status; otherwise the connection is
		// all we have and closing it is the signal.
		if sw == nil {
			writeError(w, http.StatusInternalServerError, "Internal server error", err.Error(), h.logger)
			return
		}
		h.logger.Debug("stream aborted", "error", err)
	}
}

// bearerToken extracts the bearer token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
