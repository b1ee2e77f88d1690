// Package convert turns uploaded documents into normalized plain text for
// comparison.
//
// Supported formats:
//   - .pdf   — pdfcpu content-stream extraction, one block per page
//   - .docx  — Microsoft Word (archive/zip → word/document.xml)
//   - .md    — Markdown (passthrough, line structure preserved)
//   - .txt   — plain text (passthrough, line endings normalized)
//   - .html  — sanitized with bluemonday, converted to markdown
//
// Unlike an extraction pipeline that flattens documents for indexing, the
// converter preserves line structure: the diff engine aligns documents line
// by line and page break positions feed the per-page citations.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// Format identifies a document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDocx Format = "docx"
	FormatMD   Format = "md"
	FormatTXT  Format = "txt"
	FormatHTML Format = "html"
)

// Metadata describes a converted document.
type Metadata struct {
	FileName  string `json:"file_name"`
	SizeBytes int64  `json:"size_bytes"`
	Format    Format `json:"format"`
	Title     string `json:"title,omitempty"`
	PageCount int    `json:"page_count"`
	WordCount int    `json:"word_count"`
}

// Text is the result of converting one document.
type Text struct {
	// Content is the full normalized text, LF line endings.
	Content string
	// PageBreaks holds the 1-based line number where each page starts.
	// Single-page formats get a single entry at line 1.
	PageBreaks []int
	Meta       Metadata
}

// ConversionError wraps any failure to turn a document into text. It is
// job-fatal but retryable at the job level.
type ConversionError struct {
	Path string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s: %v", e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Config configures the converter.
type Config struct {
	// MaxFileSize is the largest accepted input (default: 50 MB).
	MaxFileSize int64
	// MinFileSize rejects truncated uploads (default: 100 bytes).
	MinFileSize int64
	// MaxPages caps PDF page count (default: 500).
	MaxPages int
	// Logger for debug messages.
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 50 * 1024 * 1024
	}
	if c.MinFileSize <= 0 {
		c.MinFileSize = 100
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 500
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Converter converts documents to comparison-ready text.
type Converter struct {
	cfg       Config
	logger    *slog.Logger
	sanitizer *bluemonday.Policy
	md        *converter.Converter
}

// New creates a Converter with the given configuration.
func New(cfg Config) *Converter {
	cfg.defaults()
	return &Converter{
		cfg:       cfg,
		logger:    cfg.Logger,
		sanitizer: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Detect returns the document format based on file extension.
func (c *Converter) Detect(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDocx, nil
	case ".md", ".markdown":
		return FormatMD, nil
	case ".txt", ".text":
		return FormatTXT, nil
	case ".html", ".htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported format: %q", filepath.Ext(path))
	}
}

// ToText converts the document at path. Any failure comes back as a
// *ConversionError.
func (c *Converter) ToText(ctx context.Context, path string) (*Text, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ConversionError{Path: path, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &ConversionError{Path: path, Err: err}
	}
	if info.Size() < c.cfg.MinFileSize {
		return nil, &ConversionError{Path: path,
			Err: fmt.Errorf("file too small: %d bytes (min %d)", info.Size(), c.cfg.MinFileSize)}
	}
	if info.Size() > c.cfg.MaxFileSize {
		return nil, &ConversionError{Path: path,
			Err: fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), c.cfg.MaxFileSize)}
	}

	format, err := c.Detect(path)
	if err != nil {
		return nil, &ConversionError{Path: path, Err: err}
	}

	c.logger.Debug("converting document", "path", path, "format", format)

	var title string
	var pages []string

	switch format {
	case FormatPDF:
		title, pages, err = c.extractPDF(path)
	case FormatDocx:
		title, pages, err = extractDocx(path)
	case FormatMD:
		title, pages, err = extractMarkdown(path)
	case FormatTXT:
		title, pages, err = extractPlainText(path)
	case FormatHTML:
		title, pages, err = c.extractHTML(path)
	}
	if err != nil {
		return nil, &ConversionError{Path: path, Err: err}
	}

	content, breaks := assemble(pages)
	return &Text{
		Content:    content,
		PageBreaks: breaks,
		Meta: Metadata{
			FileName:  filepath.Base(path),
			SizeBytes: info.Size(),
			Format:    format,
			Title:     title,
			PageCount: len(pages),
			WordCount: len(strings.Fields(content)),
		},
	}, nil
}

// assemble joins page texts with blank-line separators and records the
// 1-based line number where each page begins.
func assemble(pages []string) (string, []int) {
	var sb strings.Builder
	breaks := make([]int, 0, len(pages))
	line := 1

	for i, page := range pages {
		if i > 0 {
			sb.WriteByte('\n')
			line++
		}
		breaks = append(breaks, line)
		sb.WriteString(page)
		line += strings.Count(page, "\n")
		if !strings.HasSuffix(page, "\n") {
			sb.WriteByte('\n')
			line++
		}
	}
	return sb.String(), breaks
}

// normalizeNewlines converts CRLF and bare CR line endings to LF.
func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// firstNonEmptyLine returns the first non-blank line, capped at 200 runes.
func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		runes := []rune(line)
		if len(runes) > 200 {
			return string(runes[:200])
		}
		return line
	}
	return ""
}
