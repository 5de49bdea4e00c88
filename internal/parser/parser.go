// Package parser extracts frontmatter, titles, and tags from draft content.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// MaxTitleRunes bounds titles derived from a first line of plain text.
const MaxTitleRunes = 40

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// ErrFrontmatter reports a frontmatter block that is not valid YAML.
var ErrFrontmatter = errors.New("invalid frontmatter")

// Result holds the output of parsing draft content.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Tags        []string
	Title       string
}

// Parse extracts frontmatter, body, tags, and a title from raw content.
// Invalid frontmatter is treated as body text.
func Parse(data []byte) *Result {
	fm, body, _ := splitFrontmatter(data)
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Tags:        extractTags(body, fm),
		Title:       deriveTitle(fm, body),
	}
}

// Validate returns ErrFrontmatter when content opens a frontmatter block that
// does not parse as YAML.
func Validate(data []byte) error {
	_, _, err := splitFrontmatter(data)
	return err
}

// Title derives a display title: the frontmatter "title", else the first H1
// heading, else the first non-blank line, truncated to MaxTitleRunes.
func Title(data []byte) string {
	return Parse(data).Title
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Without a closing delimiter the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data), fmt.Errorf("%w: %v", ErrFrontmatter, err)
	}

	return fm, body, nil
}

// extractTags collects #tags from body and from the frontmatter "tags" list.
func extractTags(body string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if list, ok := fm["tags"].([]interface{}); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}

	return out
}

func deriveTitle(fm map[string]interface{}, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return truncate(s)
	}

	lines := strings.Split(body, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return truncate(strings.TrimSpace(trimmed[2:]))
		}
	}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return truncate(strings.TrimLeft(trimmed, "# "))
		}
	}
	return ""
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxTitleRunes {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:MaxTitleRunes]))
}
