package markdown

import (
	"html"
	"strconv"
	"strings"
)

// BlockKind identifies a block-level node produced by Tokenize.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockCode
	BlockList
	BlockHTML
)

// Block is one node of the block tree. Text holds the raw (unrendered)
// content; Items is only used by lists, Level only by headings and Info
// only by code fences.
type Block struct {
	Kind  BlockKind
	Level int
	Info  string
	Text  string
	Items []string
}

type Option func(*Lite)

// WithSafeMode escapes HTML in all emitted text and demotes raw HTML blocks to
// escaped paragraphs. Without it the output is trusted author markup.
func WithSafeMode() Option {
	return func(l *Lite) { l.safe = true }
}

// Lite renders the restricted dialect: headings 1-3, bold, italic, inline
// code, fenced code, unordered lists and paragraphs.
type Lite struct {
	safe bool
}

func NewLite(opts ...Option) *Lite {
	l := &Lite{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Lite) Render(body string) (string, error) {
	return l.Emit(Tokenize(body)), nil
}

// Tokenize splits body into block nodes. Blank lines end paragraphs and
// lists; headings and fences interrupt a paragraph in progress.
func Tokenize(body string) []Block {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")

	var blocks []Block
	var para []string
	flush := func() {
		if len(para) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(para, "\n"))
		para = nil
		if text == "" {
			return
		}
		kind := BlockParagraph
		if strings.HasPrefix(text, "<") && strings.HasSuffix(text, ">") {
			kind = BlockHTML
		}
		blocks = append(blocks, Block{Kind: kind, Text: text})
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			flush()
			continue
		}

		if strings.HasPrefix(trimmed, "```") {
			flush()
			info := ""
			if fields := strings.Fields(strings.TrimPrefix(trimmed, "```")); len(fields) > 0 {
				info = fields[0]
			}
			var code []string
			// An unclosed fence runs to the end of the body.
			for i++; i < len(lines); i++ {
				if strings.TrimSpace(lines[i]) == "```" {
					break
				}
				code = append(code, lines[i])
			}
			blocks = append(blocks, Block{Kind: BlockCode, Info: info, Text: strings.Join(code, "\n")})
			continue
		}

		if level, text, ok := heading(line); ok {
			flush()
			blocks = append(blocks, Block{Kind: BlockHeading, Level: level, Text: text})
			continue
		}

		if item, ok := listItem(line); ok {
			flush()
			items := []string{item}
			for i+1 < len(lines) {
				next, ok := listItem(lines[i+1])
				if !ok {
					break
				}
				items = append(items, next)
				i++
			}
			blocks = append(blocks, Block{Kind: BlockList, Items: items})
			continue
		}

		para = append(para, line)
	}
	flush()

	return blocks
}

func heading(line string) (int, string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level < 1 || level > 3 || level >= len(line) || line[level] != ' ' {
		return 0, "", false
	}
	return level, strings.TrimSpace(line[level+1:]), true
}

func listItem(line string) (string, bool) {
	rest := strings.TrimLeft(line, " \t")
	if len(rest) < 2 || (rest[0] != '-' && rest[0] != '*') || (rest[1] != ' ' && rest[1] != '\t') {
		return "", false
	}
	return strings.TrimSpace(rest[1:]), true
}

// Emit renders a block tree. Inline markup is interpreted everywhere except
// code; raw HTML blocks only skip the paragraph wrapper.
func (l *Lite) Emit(blocks []Block) string {
	var b strings.Builder
	for _, blk := range blocks {
		switch blk.Kind {
		case BlockHeading:
			tag := "h" + strconv.Itoa(blk.Level)
			b.WriteString("<" + tag + ">")
			b.WriteString(l.inline(blk.Text))
			b.WriteString("</" + tag + ">")
		case BlockCode:
			b.WriteString("<pre><code")
			if blk.Info != "" {
				b.WriteString(` class="language-` + html.EscapeString(blk.Info) + `"`)
			}
			b.WriteString(">")
			b.WriteString(l.text(blk.Text))
			b.WriteString("</code></pre>")
		case BlockList:
			b.WriteString("<ul>")
			for _, item := range blk.Items {
				b.WriteString("<li>")
				b.WriteString(l.inline(item))
				b.WriteString("</li>")
			}
			b.WriteString("</ul>")
		case BlockHTML:
			if l.safe {
				b.WriteString("<p>" + l.text(blk.Text) + "</p>")
				continue
			}
			b.WriteString(l.inline(blk.Text))
		default:
			b.WriteString("<p>")
			b.WriteString(l.inline(blk.Text))
			b.WriteString("</p>")
		}
	}
	return b.String()
}

// inline handles code spans, then bold, then italic. Spans never cross a
// newline; an unmatched marker is kept as literal text.
func (l *Lite) inline(s string) string {
	var b strings.Builder
	plain := 0
	emit := func(upto int) {
		b.WriteString(l.text(s[plain:upto]))
	}

	for i := 0; i < len(s); {
		switch {
		case s[i] == '`':
			if end := closing(s, i+1, "`"); end > i+1 {
				emit(i)
				b.WriteString("<code>" + l.text(s[i+1:end]) + "</code>")
				i = end + 1
				plain = i
				continue
			}
		case strings.HasPrefix(s[i:], "**"):
			if end := closing(s, i+2, "**"); end >= 0 {
				emit(i)
				b.WriteString("<strong>" + l.inline(s[i+2:end]) + "</strong>")
				i = end + 2
				plain = i
				continue
			}
		case s[i] == '*':
			if end := closing(s, i+1, "*"); end >= 0 {
				emit(i)
				b.WriteString("<em>" + l.inline(s[i+1:end]) + "</em>")
				i = end + 1
				plain = i
				continue
			}
		}
		i++
	}
	emit(len(s))
	return b.String()
}

func closing(s string, from int, delim string) int {
	if from > len(s) {
		return -1
	}
	idx := strings.Index(s[from:], delim)
	if idx < 0 {
		return -1
	}
	if nl := strings.IndexByte(s[from:], '\n'); nl >= 0 && nl < idx {
		return -1
	}
	return from + idx
}

func (l *Lite) text(s string) string {
	if l.safe {
		return html.EscapeString(s)
	}
	return s
}
