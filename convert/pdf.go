package convert

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// extractPDF pulls text out of a PDF page by page via pdfcpu content
// streams. Returns the title (first non-empty line of the first page with
// text) and one text block per non-empty page.
func (c *Converter) extractPDF(path string) (string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return "", nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	if pdfCtx.PageCount > c.cfg.MaxPages {
		return "", nil, fmt.Errorf("too many pages: %d (max %d)", pdfCtx.PageCount, c.cfg.MaxPages)
	}

	var title string
	var pages []string
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		pageText := extractPageText(pdfCtx, pageNr)
		if pageText == "" {
			continue
		}
		if title == "" {
			title = firstNonEmptyLine(pageText)
		}
		pages = append(pages, pageText)
	}

	if len(pages) == 0 {
		return "", nil, fmt.Errorf("no text content found in PDF")
	}
	return title, pages, nil
}

func extractPageText(pdfCtx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return decodeContentStream(data)
}

// pdfStringRe matches PDF string literals in parentheses: (text here)
var pdfStringRe = regexp.MustCompile(`\(([^)]*)\)`)

// decodeContentStream walks content-stream operators and reassembles the
// shown text. Text-positioning operators (Td/TD/T*/') become line breaks so
// the page keeps a usable line structure for the diff.
func decodeContentStream(data []byte) string {
	var sb strings.Builder

	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		switch {
		case strings.HasSuffix(line, "Tj"), strings.HasSuffix(line, "TJ"):
			for _, m := range pdfStringRe.FindAllStringSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case strings.HasSuffix(line, "'") && strings.Contains(line, "("):
			for _, m := range pdfStringRe.FindAllStringSubmatch(line, -1) {
				sb.WriteByte('\n')
				sb.WriteString(decodePDFString(m[1]))
			}
		case strings.HasSuffix(line, "Td"), strings.HasSuffix(line, "TD"), line == "T*":
			sb.WriteByte('\n')
		}
	}

	return tidyPageText(sb.String())
}

// decodePDFString handles the basic PDF escape sequences.
func decodePDFString(raw string) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				// Octal escape, up to three digits (e.g. \050 for parenthesis).
				val := int(raw[i] - '0')
				for d := 0; d < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; d++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}

// tidyPageText collapses runs of spaces and drops non-printable characters
// while keeping line breaks, then strips blank lines.
func tidyPageText(text string) string {
	var lines []string
	for _, raw := range strings.Split(normalizeNewlines(text), "\n") {
		var sb strings.Builder
		prevSpace := false
		for _, r := range raw {
			switch {
			case r == ' ' || r == '\t':
				if !prevSpace && sb.Len() > 0 {
					sb.WriteByte(' ')
					prevSpace = true
				}
			case unicode.IsPrint(r):
				sb.WriteRune(r)
				prevSpace = false
			}
		}
		if line := strings.TrimSpace(sb.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
