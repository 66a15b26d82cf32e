package extraction

import (
	"context"
	"regexp"
	"strings"
)

// MediaTypePDF is the only media type accepted for document extraction.
const MediaTypePDF = "application/pdf"

// TextRecognizer turns a PDF document into raw text. Implementations wrap
// an OCR engine or a remote recognition service.
type TextRecognizer interface {
	Recognize(ctx context.Context, document []byte) (string, error)
}

// Fields are the lead fields pulled out of recognized text. Absent fields
// stay empty strings.
type Fields struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

var (
	nameRe  = regexp.MustCompile(`(?:Name[:\s]*)([A-Z][a-z]+(?:\s[A-Z][a-z]+)*)`)
	emailRe = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\s\-()]{7,}`)
)

// ExtractFields pulls name, email, and phone out of free text. The first
// match wins for each field.
func ExtractFields(text string) Fields {
	var f Fields
	if m := nameRe.FindStringSubmatch(text); len(m) > 1 {
		f.Name = strings.TrimSpace(m[1])
	}
	f.Email = strings.TrimSpace(emailRe.FindString(text))
	f.Phone = strings.TrimSpace(phoneRe.FindString(text))
	return f
}
