package convert

import (
	"os"
	"strings"
)

// extractPlainText passes a text file through with normalized line endings.
func extractPlainText(path string) (string, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	text := strings.TrimRight(normalizeNewlines(string(data)), "\n")
	return firstNonEmptyLine(text), []string{text}, nil
}

// extractMarkdown passes markdown through untouched except for line-ending
// normalization; the diff runs on the markdown source itself. Title is the
// first ATX heading, falling back to the first non-blank line.
func extractMarkdown(path string) (string, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	text := strings.TrimRight(normalizeNewlines(string(data)), "\n")
	return markdownTitle(text), []string{text}, nil
}

func markdownTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		heading := strings.TrimSpace(strings.TrimRight(strings.TrimLeft(trimmed, "#"), "#"))
		if heading != "" {
			return heading
		}
	}
	return firstNonEmptyLine(text)
}
