package rag

import (
	"regexp"
	"strings"
)

// Saudi identity numbers are 10 digits: national IDs start with 1,
// Iqama (residency) numbers start with 2. The generic pattern catches
// any other run of 10+ digits so no long identifier ever reaches a
// provider unmasked.
var (
	nationalIDPattern = regexp.MustCompile(`\b1\d{9}\b`)
	iqamaPattern      = regexp.MustCompile(`\b2\d{9}\b`)
	longDigitPattern  = regexp.MustCompile(`\d{10,}`)
)

// RedactIdentifiers masks all but the last four digits of identity
// numbers embedded in text. Applied to every chunk before it enters the
// assembled context.
func RedactIdentifiers(text string) string {
	text = nationalIDPattern.ReplaceAllStringFunc(text, maskAllButLast4)
	text = iqamaPattern.ReplaceAllStringFunc(text, maskAllButLast4)
	text = longDigitPattern.ReplaceAllStringFunc(text, maskAllButLast4)
	return text
}

func maskAllButLast4(id string) string {
	if len(id) <= 4 {
		return id
	}
	return strings.Repeat("*", len(id)-4) + id[len(id)-4:]
}
