// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a minimal single-font PDF with one page per text,
// computing the cross-reference offsets.
func buildPDF(pages ...string) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	n := len(pages)
	// 1: catalog, 2: pages, 3: font, then page/content pairs.
	kids := ""
	for i := 0; i < n; i++ {
		kids += fmt.Sprintf("%d 0 R ", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, n))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, text := range pages {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func serve(t *testing.T, status int, body []byte) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestExtract(t *testing.T) {
	ts := serve(t, http.StatusOK, buildPDF("Hello Paper", "Second Page"))
	e := &Extractor{Client: ts.Client()}

	text, err := e.Extract(context.Background(), ts.URL+"/pdf/2402.01234")
	require.NoError(t, err)
	assert.Contains(t, text, "Hello Paper")
	assert.Contains(t, text, "Second Page")
}

func TestExtractMaxPages(t *testing.T) {
	ts := serve(t, http.StatusOK, buildPDF("First Page", "Second Page"))
	e := &Extractor{Client: ts.Client(), MaxPages: 1}

	text, err := e.Extract(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Contains(t, text, "First Page")
	assert.NotContains(t, text, "Second Page")
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   []byte
		max    int64
	}{
		{"not found", http.StatusNotFound, []byte("missing"), 0},
		{"not a pdf", http.StatusOK, []byte("<html>captcha</html>"), 0},
		{"too large", http.StatusOK, buildPDF("Hello"), 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := serve(t, tt.status, tt.body)
			e := &Extractor{Client: ts.Client(), MaxBytes: tt.max}
			_, err := e.Extract(context.Background(), ts.URL)
			assert.Error(t, err)
		})
	}
}
