package convert

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestConverter() *Converter {
	return New(Config{MinFileSize: 1})
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetect(t *testing.T) {
	c := newTestConverter()

	tests := []struct {
		path   string
		format Format
	}{
		{"doc.pdf", FormatPDF},
		{"doc.docx", FormatDocx},
		{"doc.md", FormatMD},
		{"doc.markdown", FormatMD},
		{"doc.txt", FormatTXT},
		{"doc.text", FormatTXT},
		{"doc.html", FormatHTML},
		{"doc.htm", FormatHTML},
		{"DOC.PDF", FormatPDF},
	}

	for _, tt := range tests {
		f, err := c.Detect(tt.path)
		if err != nil {
			t.Errorf("Detect(%q): %v", tt.path, err)
			continue
		}
		if f != tt.format {
			t.Errorf("Detect(%q) = %q, want %q", tt.path, f, tt.format)
		}
	}

	if _, err := c.Detect("file.xyz"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestToTextPlain(t *testing.T) {
	path := writeFile(t, "doc.txt", "First line\r\nSecond line\r\nThird line\r\n")

	text, err := newTestConverter().ToText(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if text.Content != "First line\nSecond line\nThird line\n" {
		t.Fatalf("Content = %q", text.Content)
	}
	if text.Meta.Title != "First line" {
		t.Errorf("Title = %q", text.Meta.Title)
	}
	if text.Meta.Format != FormatTXT {
		t.Errorf("Format = %q", text.Meta.Format)
	}
	if text.Meta.WordCount != 6 {
		t.Errorf("WordCount = %d, want 6", text.Meta.WordCount)
	}
	if len(text.PageBreaks) != 1 || text.PageBreaks[0] != 1 {
		t.Errorf("PageBreaks = %v, want [1]", text.PageBreaks)
	}
}

func TestToTextMarkdown(t *testing.T) {
	path := writeFile(t, "doc.md", "Intro paragraph.\n\n# The Title\n\nBody text here.\n")

	text, err := newTestConverter().ToText(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if text.Meta.Title != "The Title" {
		t.Errorf("Title = %q, want markdown heading", text.Meta.Title)
	}
	if !strings.Contains(text.Content, "# The Title") {
		t.Errorf("markdown structure lost: %q", text.Content)
	}
}

func TestToTextHTML(t *testing.T) {
	page := `<html><head><title>Report 2026</title><script>alert(1)</script></head>
<body><h1>Summary</h1><p>Quarterly figures improved.</p></body></html>`
	path := writeFile(t, "doc.html", page)

	text, err := newTestConverter().ToText(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if text.Meta.Title != "Report 2026" {
		t.Errorf("Title = %q", text.Meta.Title)
	}
	if !strings.Contains(text.Content, "Quarterly figures improved.") {
		t.Errorf("body text lost: %q", text.Content)
	}
	if strings.Contains(text.Content, "alert(1)") {
		t.Errorf("script content not sanitized: %q", text.Content)
	}
}

func TestToTextDocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	docXML := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Contract Title</w:t></w:r></w:p>
<w:p><w:r><w:t>First clause text.</w:t></w:r></w:p>
<w:p><w:r><w:t>Second clause text.</w:t></w:r></w:p>
</w:body>
</w:document>`
	fw, _ := w.Create("word/document.xml")
	fw.Write([]byte(docXML))
	w.Close()
	f.Close()

	text, err := newTestConverter().ToText(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if text.Meta.Title != "Contract Title" {
		t.Errorf("Title = %q", text.Meta.Title)
	}
	if !strings.Contains(text.Content, "# Contract Title") {
		t.Errorf("heading not rendered: %q", text.Content)
	}
	if !strings.Contains(text.Content, "First clause text.\nSecond clause text.") {
		t.Errorf("paragraphs not line-separated: %q", text.Content)
	}
}

func TestToTextSizeLimits(t *testing.T) {
	small := writeFile(t, "small.txt", "x")
	c := New(Config{MinFileSize: 100})
	_, err := c.ToText(context.Background(), small)
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *ConversionError, got %v", err)
	}
	if !strings.Contains(err.Error(), "too small") {
		t.Errorf("error = %v", err)
	}

	big := writeFile(t, "big.txt", strings.Repeat("a", 300))
	c = New(Config{MinFileSize: 1, MaxFileSize: 200})
	if _, err := c.ToText(context.Background(), big); err == nil ||
		!strings.Contains(err.Error(), "too large") {
		t.Errorf("expected too-large error, got %v", err)
	}
}

func TestToTextMissingFile(t *testing.T) {
	_, err := newTestConverter().ToText(context.Background(), "/no/such/file.txt")
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *ConversionError, got %v", err)
	}
}

func TestAssemblePageBreaks(t *testing.T) {
	content, breaks := assemble([]string{"page one line 1\npage one line 2", "page two"})
	if content != "page one line 1\npage one line 2\n\npage two\n" {
		t.Fatalf("content = %q", content)
	}
	// Page one starts at line 1; the separator blank line is line 3; page two
	// starts at line 4.
	if len(breaks) != 2 || breaks[0] != 1 || breaks[1] != 4 {
		t.Fatalf("breaks = %v, want [1 4]", breaks)
	}
}

func TestDecodePDFString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`plain`, "plain"},
		{`with \( escaped \)`, "with ( escaped )"},
		{`tab\there`, "tab\there"},
		{`octal\040space`, "octal space"},
	}
	for _, tt := range tests {
		if got := decodePDFString(tt.in); got != tt.want {
			t.Errorf("decodePDFString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeContentStream(t *testing.T) {
	stream := "BT\n/F1 12 Tf\n(Hello ) Tj\n(world) Tj\nT*\n(second line) Tj\nET\n"
	got := decodeContentStream([]byte(stream))
	if got != "Hello world\nsecond line" {
		t.Fatalf("decoded = %q", got)
	}
}
