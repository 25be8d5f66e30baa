package services

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"blog-cms/pkg/models"
)

const frontmatterDelimiter = "---"

// ScalarKind tags the shape a frontmatter value decoded to.
type ScalarKind int

const (
	ScalarLiteral ScalarKind = iota
	ScalarQuoted
	ScalarList
)

// Scalar is a decoded frontmatter value. Text is set for literal and quoted
// values, List for list values.
type Scalar struct {
	Kind ScalarKind
	Text string
	List []string
}

// DecodeScalar decodes one frontmatter value. Quotes win over lists, lists
// over literals; a list that fails to parse is logged and kept as a literal.
func DecodeScalar(raw string) Scalar {
	s := strings.TrimSpace(raw)

	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		inner := s[1 : len(s)-1]
		if s[0] == '"' {
			// Values written by EncodeFrontmatter are JSON string literals.
			var unescaped string
			if err := json.Unmarshal([]byte(s), &unescaped); err == nil {
				inner = unescaped
			}
		}
		return Scalar{Kind: ScalarQuoted, Text: inner}
	}

	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		list, err := decodeList(s)
		if err == nil {
			return Scalar{Kind: ScalarList, List: list}
		}
		slog.Warn("Could not parse list value", "value", s, "error", err)
	}

	return Scalar{Kind: ScalarLiteral, Text: s}
}

func decodeList(s string) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, err
	}
	list := make([]string, 0, len(items))
	for _, item := range items {
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			list = append(list, str)
			continue
		}
		list = append(list, string(item))
	}
	return list, nil
}

// Frontmatter maps field names to decoded values.
type Frontmatter map[string]Scalar

// String returns the field as text. Lists are joined with ", ".
func (f Frontmatter) String(key string) string {
	v, ok := f[key]
	if !ok {
		return ""
	}
	if v.Kind == ScalarList {
		return strings.Join(v.List, ", ")
	}
	return v.Text
}

// List returns the field as an ordered list. Text values are split on commas.
// Empty entries are dropped; duplicates are kept.
func (f Frontmatter) List(key string) []string {
	v, ok := f[key]
	if !ok {
		return []string{}
	}
	items := v.List
	if v.Kind != ScalarList {
		items = strings.Split(v.Text, ",")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ParseFrontmatter splits raw into its metadata block and body. A missing
// opening or closing delimiter yields empty metadata and the whole input as
// body; it never fails.
func ParseFrontmatter(raw string) (Frontmatter, string) {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	if !isDelimiter(lines[0]) {
		return Frontmatter{}, strings.TrimSpace(text)
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if isDelimiter(lines[i]) {
			end = i
			break
		}
	}
	if end < 0 {
		return Frontmatter{}, strings.TrimSpace(text)
	}

	fm := Frontmatter{}
	for _, line := range lines[1:end] {
		key, value, ok := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		fm[key] = DecodeScalar(value)
	}

	return fm, strings.TrimSpace(strings.Join(lines[end+1:], "\n"))
}

func isDelimiter(line string) bool {
	return strings.TrimRight(line, " \t") == frontmatterDelimiter
}

// EncodeFrontmatter writes the canonical content file for in: the metadata
// block in a fixed field order followed by the trimmed body.
func EncodeFrontmatter(in models.PostInput) string {
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	var b strings.Builder
	b.WriteString(frontmatterDelimiter + "\n")
	b.WriteString("title: " + encodeJSON(in.Title) + "\n")
	b.WriteString("date: " + encodeJSON(in.Date) + "\n")
	b.WriteString("summary: " + encodeJSON(in.Summary) + "\n")
	b.WriteString("tags: " + encodeJSON(tags) + "\n")
	b.WriteString("heroImage: " + encodeJSON(in.HeroImage) + "\n")
	b.WriteString("canonicalUrl: " + encodeJSON(in.CanonicalURL) + "\n")
	b.WriteString(frontmatterDelimiter + "\n\n")
	b.WriteString(strings.TrimSpace(in.Content))
	b.WriteString("\n")
	return b.String()
}

func encodeJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
