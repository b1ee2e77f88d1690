package convert

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// extractHTML sanitizes the document and converts it to markdown so that
// HTML and markdown inputs diff against each other on equal footing.
func (c *Converter) extractHTML(path string) (string, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}

	title := htmlTitle(data)

	clean := c.sanitizer.SanitizeBytes(data)
	md, err := c.md.ConvertString(string(clean))
	if err != nil {
		return "", nil, fmt.Errorf("html to markdown: %w", err)
	}
	text := strings.TrimSpace(normalizeNewlines(md))
	if text == "" {
		return "", nil, fmt.Errorf("no text content found in HTML")
	}

	if title == "" {
		title = markdownTitle(text)
	}
	return title, []string{text}, nil
}

// htmlTitle extracts the <title> element, if any.
func htmlTitle(data []byte) string {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			var sb strings.Builder
			for child := n.FirstChild; child != nil; child = child.NextSibling {
				if child.Type == html.TextNode {
					sb.WriteString(child.Data)
				}
			}
			title = strings.TrimSpace(sb.String())
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	runes := []rune(title)
	if len(runes) > 200 {
		title = string(runes[:200])
	}
	return title
}
