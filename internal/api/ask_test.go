package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aqlhr/askaql/internal/auth"
	"github.com/aqlhr/askaql/internal/log"
	"github.com/aqlhr/askaql/internal/rag"
	"github.com/aqlhr/askaql/internal/testutil"
)

type fakeVerifier struct {
	user auth.User
	err  error
}

func (f *fakeVerifier) VerifyToken(_ context.Context, _ string) (auth.User, error) {
	return f.user, f.err
}

// fakeAskService returns canned responses and records the request it saw.
type fakeAskService struct {
	lastReq    rag.Request
	answer     rag.Response
	streamResp *rag.Response // non-nil = zero-chunk short-circuit
	events     []rag.Event
	streamErr  error
}

func (f *fakeAskService) Answer(_ context.Context, req rag.Request) rag.Response {
	f.lastReq = req
	return f.answer
}

func (f *fakeAskService) Stream(_ context.Context, req rag.Request, emit rag.EmitFunc) (*rag.Response, error) {
	f.lastReq = req
	if f.streamResp != nil {
		return f.streamResp, nil
	}
	for _, e := range f.events {
		if err := emit(e); err != nil {
			return nil, err
		}
	}
	return nil, f.streamErr
}

func okVerifier() *fakeVerifier {
	return &fakeVerifier{user: auth.User{ID: "user-1", Email: "hr@example.sa"}}
}

func answerResponse() rag.Response {
	return rag.Response{
		Answer: "Per the employment contract [1], notice is 30 days.",
		Citations: []rag.Citation{
			{ID: "doc-1", Title: "Employment Contract", Score: 0.92},
		},
		Usage: rag.Usage{TokensIn: 120, TokensOut: 14, Provider: "genspark"},
	}
}

func newTestServer(t *testing.T, svc AskService, verifier auth.Verifier) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger:   log.NewNop(),
		Service:  svc,
		Verifier: verifier,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv
}

func postAsk(srv *Server, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer valid-token")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAskNonStreaming(t *testing.T) {
	svc := &fakeAskService{answer: answerResponse()}
	srv := newTestServer(t, svc, okVerifier())

	rec := postAsk(srv, `{"companyId":"co-1","query":"What is the notice period?","k":5}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp rag.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Answer != svc.answer.Answer {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Citations) != 1 || resp.Citations[0].ID != "doc-1" {
		t.Errorf("citations = %+v", resp.Citations)
	}
	if resp.Usage.Provider != "genspark" {
		t.Errorf("usage.provider = %q", resp.Usage.Provider)
	}

	if svc.lastReq.CompanyID != "co-1" || svc.lastReq.K != 5 {
		t.Errorf("service saw request %+v", svc.lastReq)
	}
}

func TestAskRejectsMissingAuth(t *testing.T) {
	srv := newTestServer(t, &fakeAskService{}, okVerifier())

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"companyId":"co-1","query":"q"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if body.Error != "Unauthorized" {
		t.Errorf("error = %q, want Unauthorized", body.Error)
	}
}

func TestAskRejectsInvalidToken(t *testing.T) {
	verifier := &fakeVerifier{err: auth.ErrUnauthorized}
	srv := newTestServer(t, &fakeAskService{}, verifier)

	rec := postAsk(srv, `{"companyId":"co-1","query":"q"}`, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAskValidation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"missing companyId", `{"query":"q"}`, http.StatusBadRequest, "Missing companyId or query"},
		{"missing query", `{"companyId":"co-1"}`, http.StatusBadRequest, "Missing companyId or query"},
		{"negative k", `{"companyId":"co-1","query":"q","k":-3}`, http.StatusBadRequest, "Invalid k"},
		{"malformed JSON", `{"companyId":`, http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeAskService{}, okVerifier())

			rec := postAsk(srv, tt.body, nil)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal error body: %v", err)
			}
			if body.Error != tt.wantError {
				t.Errorf("error = %q, want %q", body.Error, tt.wantError)
			}
		})
	}
}

func TestAskMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeAskService{}, okVerifier())

	req := httptest.NewRequest(http.MethodGet, "/v1/ask", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if body.Error != "Method not allowed" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestAskBodyTooLarge(t *testing.T) {
	srv := newTestServer(t, &fakeAskService{}, okVerifier())

	big := `{"companyId":"co-1","query":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec := postAsk(srv, big, nil)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestAskStreaming(t *testing.T) {
	citations := []rag.Citation{{ID: "doc-1", Title: "Employment Contract", Score: 0.92}}
	svc := &fakeAskService{
		events: []rag.Event{
			{Type: rag.EventToken, Delta: ""},
			{Type: rag.EventToken, Delta: "Notice "},
			{Type: rag.EventToken, Delta: "is 30 days."},
			{Type: rag.EventCitations, Citations: citations},
			{Type: rag.EventDone},
		},
	}
	srv := newTestServer(t, svc, okVerifier())

	rec := postAsk(srv, `{"companyId":"co-1","query":"notice period?","stream":true}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	events := testutil.ParseSSEEvents(t, rec.Body.String())
	types := testutil.EventTypes(events)
	want := []string{"token", "token", "token", "citations", "done"}
	if len(types) != len(want) {
		t.Fatalf("event types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event[%d] = %q, want %q (all: %v)", i, types[i], want[i], types)
		}
	}

	var tok tokenPayload
	if err := json.Unmarshal([]byte(events[1].Data), &tok); err != nil {
		t.Fatalf("unmarshal token payload: %v", err)
	}
	if tok.Delta != "Notice " {
		t.Errorf("token delta = %q", tok.Delta)
	}

	ce := testutil.FindEvent(events, "citations")
	if ce == nil {
		t.Fatal("no citations event")
	}
	var cp citationsPayload
	if err := json.Unmarshal([]byte(ce.Data), &cp); err != nil {
		t.Fatalf("unmarshal citations payload: %v", err)
	}
	if len(cp.Citations) != 1 || cp.Citations[0].ID != "doc-1" {
		t.Errorf("citations = %+v", cp.Citations)
	}

	de := testutil.FindEvent(events, "done")
	if de == nil {
		t.Fatal("no done event")
	}
	var dp donePayload
	if err := json.Unmarshal([]byte(de.Data), &dp); err != nil {
		t.Fatalf("unmarshal done payload: %v", err)
	}
	if !dp.Done {
		t.Error("done payload not true")
	}
}

func TestAskStreamingNoDocumentsFallsBackToJSON(t *testing.T) {
	resp := rag.Response{
		Answer:    rag.NoDocumentsAnswer,
		Citations: []rag.Citation{},
		Usage:     rag.Usage{Provider: "none"},
	}
	svc := &fakeAskService{streamResp: &resp}
	srv := newTestServer(t, svc, okVerifier())

	rec := postAsk(srv, `{"companyId":"co-1","query":"anything","stream":true}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json (stream short-circuit)", ct)
	}

	var got rag.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if got.Answer != rag.NoDocumentsAnswer {
		t.Errorf("answer = %q", got.Answer)
	}
	if len(got.Citations) != 0 {
		t.Errorf("citations = %+v, want empty", got.Citations)
	}
	if got.Usage.Provider != "none" {
		t.Errorf("usage.provider = %q, want none", got.Usage.Provider)
	}
}

func TestAskStreamFailureBeforeFirstEvent(t *testing.T) {
	svc := &fakeAskService{streamErr: errors.New("emit failed")}
	srv := newTestServer(t, svc, okVerifier())

	rec := postAsk(srv, `{"companyId":"co-1","query":"q","stream":true}`, nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"standard", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer abc123", "abc123"},
		{"missing header", "", ""},
		{"no scheme", "abc123", ""},
		{"wrong scheme", "Basic abc123", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/ask", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := bearerToken(r); got != tt.want {
				t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}
