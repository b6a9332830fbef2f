// Package extract derives searchable metadata from raw markdown bytes:
// a display title, a tag set, the frontmatter bag, and a plain-text
// rendering used only for full-text indexing. Extraction is pure: same
// bytes in, same result out, no I/O.
package extract

import (
	"bytes"
	"encoding/json"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// Extracted is the result of parsing one document.
type Extracted struct {
	// Title is the display title: frontmatter title, else the first
	// top-level heading, else the file name stem.
	Title string
	// Tags is the merged, lowercased, de-duplicated tag set from
	// frontmatter and inline #tag markers, sorted for stability.
	Tags []string
	// Frontmatter is the leading metadata block serialized as JSON,
	// nil when the document has none.
	Frontmatter []byte
	// StrippedContent is the body with markdown syntax removed. Never
	// shown to users and never round-tripped.
	StrippedContent string
}

var (
	parser = goldmark.New()

	// inlineTag matches #tag markers in body text: a hash at a word
	// boundary followed by a letter. Headings ("# Title") carry a space
	// after the hash and never match.
	inlineTag = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_#])#([\p{L}][\p{L}\p{N}_/-]*)`)
)

// Extract parses raw document bytes. filename provides the fallback
// title and carries no other meaning.
func Extract(filename string, raw []byte) Extracted {
	meta, body := splitFrontmatter(raw)

	doc := parser.Parser().Parse(gtext.NewReader(body))

	result := Extracted{
		Title:           deriveTitle(meta, doc, body, filename),
		Tags:            deriveTags(meta, body),
		StrippedContent: stripMarkdown(doc, body),
	}
	if meta != nil {
		if encoded, err := json.Marshal(meta); err == nil {
			result.Frontmatter = encoded
		}
	}
	return result
}

var frontmatterFence = []byte("---")

// splitFrontmatter separates an optional leading YAML block fenced by
// "---" lines from the rest of the document. Malformed YAML is
// tolerated: the whole input is treated as body.
func splitFrontmatter(raw []byte) (map[string]any, []byte) {
	rest, ok := bytes.CutPrefix(raw, frontmatterFence)
	if !ok {
		return nil, raw
	}
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || len(bytes.TrimSpace(rest[:nl])) > 0 {
		return nil, raw
	}
	rest = rest[nl+1:]

	for offset := 0; offset <= len(rest); {
		lineEnd := bytes.IndexByte(rest[offset:], '\n')
		var line []byte
		if lineEnd < 0 {
			line = rest[offset:]
			lineEnd = len(rest) - offset
		} else {
			line = rest[offset : offset+lineEnd]
		}
		if bytes.Equal(bytes.TrimRight(line, " \t\r"), frontmatterFence) {
			block := rest[:offset]
			body := rest[min(offset+lineEnd+1, len(rest)):]
			var meta map[string]any
			if err := yaml.Unmarshal(block, &meta); err != nil || meta == nil {
				return nil, raw
			}
			return meta, body
		}
		offset += lineEnd + 1
	}
	return nil, raw
}

func deriveTitle(meta map[string]any, doc ast.Node, body []byte, filename string) string {
	if meta != nil {
		if title, ok := meta["title"].(string); ok && strings.TrimSpace(title) != "" {
			return strings.TrimSpace(title)
		}
	}
	if h := firstTopHeading(doc, body); h != "" {
		return h
	}
	stem := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	return stem
}

// firstTopHeading returns the text of the first level-1 heading, or "".
func firstTopHeading(doc ast.Node, body []byte) string {
	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			title = strings.TrimSpace(string(nodeText(h, body)))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}

func deriveTags(meta map[string]any, body []byte) []string {
	set := map[string]struct{}{}

	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(tag, "#")))
		if tag != "" {
			set[tag] = struct{}{}
		}
	}

	if meta != nil {
		switch v := meta["tags"].(type) {
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case string:
			for _, s := range strings.Split(v, ",") {
				add(s)
			}
		}
	}

	for _, match := range inlineTag.FindAllSubmatch(body, -1) {
		add(string(match[1]))
	}

	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// stripMarkdown renders the body as plain text by walking the parsed
// AST and keeping only text content, one line per block element.
func stripMarkdown(doc ast.Node, body []byte) string {
	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(body))
			if node.HardLineBreak() || node.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(body))
			}
		case *ast.AutoLink:
			b.Write(node.URL(body))
		}
		if _, isBlock := n.(*ast.Document); !isBlock && n.Type() == ast.TypeBlock && b.Len() > 0 {
			b.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})
	return collapseWhitespace(b.String())
}

// collapseWhitespace trims lines and squeezes blank runs so the search
// vector stays compact.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// nodeText concatenates the raw text content beneath n.
func nodeText(n ast.Node, body []byte) []byte {
	var b bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := c.(*ast.Text); ok {
				b.Write(t.Segment.Value(body))
			}
		}
		return ast.WalkContinue, nil
	})
	return b.Bytes()
}
