package convert

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strings"
)

// extractDocx reads word/document.xml from the ZIP archive and renders each
// paragraph as one line. Heading paragraphs become markdown headings so a
// .docx diffs cleanly against a markdown rendition of the same document.
func extractDocx(path string) (string, []string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", nil, fmt.Errorf("word/document.xml not found in archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var lines []string
	var title string
	var paragraph strings.Builder
	var inParagraph bool
	var style string

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "p":
				inParagraph = true
				paragraph.Reset()
				style = ""
			case t.Name.Local == "pStyle" && inParagraph:
				for _, attr := range t.Attr {
					if attr.Name.Local == "val" {
						style = attr.Value
					}
				}
			}

		case xml.CharData:
			if inParagraph {
				paragraph.Write(t)
			}

		case xml.EndElement:
			if t.Name.Local != "p" || !inParagraph {
				continue
			}
			inParagraph = false
			text := strings.TrimSpace(paragraph.String())
			if text == "" {
				continue
			}

			if level := headingLevel(style); level > 0 {
				if title == "" {
					title = text
				}
				if len(lines) > 0 {
					lines = append(lines, "")
				}
				lines = append(lines, strings.Repeat("#", level)+" "+text, "")
			} else {
				lines = append(lines, text)
			}
		}
	}

	if len(lines) == 0 {
		return "", nil, fmt.Errorf("no text content found in document")
	}

	content := strings.TrimRight(strings.Join(lines, "\n"), "\n")
	if title == "" {
		title = firstNonEmptyLine(content)
	}
	return title, []string{content}, nil
}

// headingLevel maps a paragraph style name to a heading level.
// "Heading1" → 1, "Title" → 1, "Subtitle" → 2, otherwise 0 (body).
func headingLevel(style string) int {
	lower := strings.ToLower(style)
	if lower == "title" {
		return 1
	}
	if lower == "subtitle" {
		return 2
	}
	for _, prefix := range []string{"heading", "titre"} {
		rest, ok := strings.CutPrefix(lower, prefix)
		if ok && len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
			return int(rest[0] - '0')
		}
	}
	return 0
}
