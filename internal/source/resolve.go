// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"regexp"
	"strings"
)

// idExpr matches new-style ("2301.07041") and old-style ("hep-th/9901001",
// "math.GT/0309136") arXiv identifiers with an optional version suffix.
const idExpr = `(\d{4}\.\d{4,5}|[a-z][a-z\-]*(?:\.[A-Z]{2})?/\d{7})(v\d+)?`

// bareIDPattern matches an identifier on its own.
var bareIDPattern = regexp.MustCompile(`^` + idExpr + `$`)

// urlIDPattern matches an identifier inside an abstract-page or PDF URL:
// "https://arxiv.org/abs/2301.07041v2", "arxiv.org/pdf/2301.07041.pdf".
var urlIDPattern = regexp.MustCompile(`arxiv\.org/(?:abs|pdf)/` + idExpr + `(?:\.pdf)?/?(?:[?#].*)?$`)

// Base URLs for links derived from an identifier.
var (
	arxivPDFBase = "https://arxiv.org/pdf/"
	arxivAbsBase = "https://arxiv.org/abs/"
)

// ExtractID returns the versionless arXiv identifier contained in s, which
// may be a bare id, an "arXiv:"-prefixed id, or an abstract or PDF URL.
func ExtractID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) >= 6 && strings.EqualFold(s[:6], "arxiv:") {
		s = strings.TrimSpace(s[6:])
	}

	if m := bareIDPattern.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	if m := urlIDPattern.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	return "", false
}

// PDFURL returns the PDF download URL for id.
func PDFURL(id string) string {
	return arxivPDFBase + id
}

// AbstractURL returns the abstract page URL for id.
func AbstractURL(id string) string {
	return arxivAbsBase + id
}
