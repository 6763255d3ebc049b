// Package parser reads and writes instruction documents: Markdown with an
// optional YAML frontmatter block.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

const delim = "---"

var (
	tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

	yamlFormat = frontmatter.NewFormat(delim, delim, yaml.Unmarshal)
)

// Result holds the output of parsing an instruction document.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Description string
	Title       string
	Tags        []string
}

// Parse splits frontmatter from body. A document without frontmatter is all
// body; a frontmatter block that is not valid YAML is an error.
func Parse(data []byte) (*Result, error) {
	var fm map[string]any
	body, err := frontmatter.Parse(bytes.NewReader(data), &fm, yamlFormat)
	if err != nil {
		return nil, fmt.Errorf("parser: frontmatter: %w", err)
	}

	return &Result{
		Frontmatter: fm,
		Body:        string(body),
		Description: stringField(fm, "description"),
		Title:       deriveTitle(fm, string(body)),
		Tags:        extractTags(string(body), fm),
	}, nil
}

// Render produces the stored form of an instruction. Frontmatter is emitted
// when there is a description, or when the body itself would otherwise be
// mistaken for frontmatter.
func Render(description, body string) ([]byte, error) {
	if description == "" && !startsWithDelim(body) {
		return []byte(body), nil
	}
	fm := struct {
		Description string `yaml:"description,omitempty"`
	}{Description: description}
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("parser: render frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(head)
	buf.WriteString(delim + "\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

func startsWithDelim(body string) bool {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		return trimmed == delim
	}
	return false
}

func stringField(fm map[string]any, key string) string {
	if fm == nil {
		return ""
	}
	if s, ok := fm[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// extractTags collects #tags from body and from frontmatter "tags" field.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}

	if fm != nil {
		if items, ok := fm["tags"].([]any); ok {
			for _, item := range items {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if t := stringField(fm, "title"); t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
