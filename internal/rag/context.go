package rag

import (
	"fmt"
	"strings"
)

// AssembleContext formats ranked chunks into the prompt context: one
// numbered block per chunk, metadata line first, redacted text below,
// blocks separated by "---".
//
// Block numbers [1], [2], ... follow retrieval order and must match the
// citations array built from the same chunk slice; the model cites
// sources by these positions.
func AssembleContext(chunks []Chunk) string {
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		var meta []string
		if chunk.Portal != "" {
			meta = append(meta, "Portal: "+strings.ToUpper(chunk.Portal))
		}
		if chunk.DocType != "" {
			meta = append(meta, "Type: "+chunk.DocType)
		}
		if chunk.Page > 0 {
			meta = append(meta, fmt.Sprintf("Page: %d", chunk.Page))
		}
		meta = append(meta, fmt.Sprintf("Score: %.2f", chunk.Score))

		parts = append(parts, fmt.Sprintf("[%d] %s (%s)\n%s\n",
			i+1, chunk.Title, strings.Join(meta, ", "), RedactIdentifiers(chunk.Text)))
	}
	return strings.Join(parts, "\n---\n")
}

// systemPrompt builds the fixed generation instructions with the
// assembled context appended.
func systemPrompt(docContext string) string {
	return `You are an AI assistant for Saudi HR compliance and document management. Answer questions concisely based on the provided document context.

Guidelines:
- Cite sources using [1], [2], etc. based on document numbers in context
- Focus on Saudi HR compliance, labor law, and government regulations
- When uncertain, acknowledge limitations
- Never reveal sensitive personal information (IDs, etc.)
- Respond in the same language as the query

Context Documents:
` + docContext
}
