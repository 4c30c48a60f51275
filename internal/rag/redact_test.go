package rag

import (
	"regexp"
	"testing"
)

func TestRedactIdentifiers(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "national ID",
			in:   "Employee national ID 1012345678 on file",
			want: "Employee national ID ******5678 on file",
		},
		{
			name: "iqama number",
			in:   "Iqama 2123456789 expires soon",
			want: "Iqama ******6789 expires soon",
		},
		{
			name: "generic 10 digit run",
			in:   "account 0501234567",
			want: "account ******4567",
		},
		{
			name: "longer run keeps only last four",
			in:   "ref 123456789012345",
			want: "ref ***********2345",
		},
		{
			name: "short numbers untouched",
			in:   "grade 5 after 123456789 days",
			want: "grade 5 after 123456789 days",
		},
		{
			name: "multiple identifiers",
			in:   "1012345678 and 2123456789",
			want: "******5678 and ******6789",
		},
		{
			name: "empty text",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactIdentifiers(tt.in); got != tt.want {
				t.Errorf("RedactIdentifiers(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// Any run of 10 or more digits must never survive redaction unmasked.
func TestRedactIdentifiers_NoLongDigitRunSurvives(t *testing.T) {
	inputs := []string{
		"1012345678",
		"salary slip for 2987654321 dated 2024",
		"mixed 99999999991012345678 run",
		"id:1234567890;iqama:2123456789",
	}
	leak := regexp.MustCompile(`\d{5,}`)
	for _, in := range inputs {
		got := RedactIdentifiers(in)
		if leak.MatchString(got) {
			t.Errorf("RedactIdentifiers(%q) = %q, leaks more than 4 consecutive digits", in, got)
		}
	}
}
