package rag

import "time"

// DefaultK is the number of chunks retrieved when the caller does not
// specify k.
const DefaultK = 8

// Request is a single question against a company's document set.
type Request struct {
	CompanyID string  `json:"companyId"`
	Query     string  `json:"query"`
	K         int     `json:"k,omitempty"`
	Filters   Filters `json:"filters,omitempty"`
	Stream    bool    `json:"stream,omitempty"`
}

// Filters are optional allow-lists narrowing retrieval. Empty or absent
// fields leave the search unfiltered in that dimension.
type Filters struct {
	Portal        []string `json:"portal,omitempty"`
	EmployeeID    string   `json:"employeeId,omitempty"`
	DocType       []string `json:"docType,omitempty"`
	UploadedAfter string   `json:"uploadedAfter,omitempty"` // RFC 3339
}

// Chunk is a ranked slice of a source document returned by the search
// backend. Chunks are never mutated by this package.
type Chunk struct {
	DocID       string
	Text        string
	Score       float64
	Page        int // 0 = unknown
	Portal      string
	EmployeeID  string
	DocType     string
	UploadedAt  time.Time
	Title       string
	StoragePath string
}

// Citation references the source chunk backing part of an answer.
// Citations are built 1:1 from retrieved chunks in retrieval order, so
// the bracket numbers in the assembled context resolve positionally.
type Citation struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Portal      string  `json:"portal,omitempty"`
	Page        int     `json:"page,omitempty"`
	Score       float64 `json:"score"`
	StoragePath string  `json:"storagePath"`
	DocType     string  `json:"docType,omitempty"`
	EmployeeID  string  `json:"employeeId,omitempty"`
}

// Usage reports estimated token consumption for one answer.
type Usage struct {
	TokensIn  int    `json:"tokensIn"`
	TokensOut int    `json:"tokensOut"`
	Provider  string `json:"provider"`
}

// Response is the non-streaming answer payload.
type Response struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Usage     Usage      `json:"usage"`
}

// BuildCitations derives the citations array from ranked chunks,
// preserving retrieval order.
func BuildCitations(chunks []Chunk) []Citation {
	citations := make([]Citation, 0, len(chunks))
	for _, chunk := range chunks {
		citations = append(citations, Citation{
			ID:          chunk.DocID,
			Title:       chunk.Title,
			Portal:      chunk.Portal,
			Page:        chunk.Page,
			Score:       chunk.Score,
			StoragePath: chunk.StoragePath,
			DocType:     chunk.DocType,
			EmployeeID:  chunk.EmployeeID,
		})
	}
	return citations
}

// EstimateTokens approximates token count at four characters per token.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
