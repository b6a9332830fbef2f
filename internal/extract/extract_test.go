package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitleFromFrontmatter(t *testing.T) {
	raw := []byte("---\ntitle: My Note\n---\n# Ignored Heading\nbody\n")
	got := Extract("note.md", raw)
	assert.Equal(t, "My Note", got.Title)
}

func TestTitleFromFirstHeading(t *testing.T) {
	raw := []byte("intro text\n\n# Real Title\n\n## Not this one\n")
	got := Extract("note.md", raw)
	assert.Equal(t, "Real Title", got.Title)
}

func TestTitleFallsBackToFilename(t *testing.T) {
	got := Extract("notes/weekly review.md", []byte("no headings here"))
	assert.Equal(t, "weekly review", got.Title)
}

func TestTagsMergedAndNormalized(t *testing.T) {
	raw := []byte("---\ntags:\n  - Work\n  - projects/alpha\n---\nSee #TODO and #work notes.\n")
	got := Extract("n.md", raw)
	assert.Equal(t, []string{"projects/alpha", "todo", "work"}, got.Tags)
}

func TestTagsFromScalarFrontmatter(t *testing.T) {
	raw := []byte("---\ntags: alpha, Beta\n---\nbody\n")
	got := Extract("n.md", raw)
	assert.Equal(t, []string{"alpha", "beta"}, got.Tags)
}

func TestInlineTagsIgnoreHeadings(t *testing.T) {
	raw := []byte("# Heading\n\nplain #tag1 and end#notatag but (#tag2)\n")
	got := Extract("n.md", raw)
	assert.Equal(t, []string{"tag1", "tag2"}, got.Tags)
}

func TestNoTags(t *testing.T) {
	got := Extract("n.md", []byte("- [ ] buy milk"))
	assert.Empty(t, got.Tags)
}

func TestFrontmatterRoundTrip(t *testing.T) {
	raw := []byte("---\ntitle: X\ncustom: value\nnested:\n  a: 1\n---\nbody\n")
	got := Extract("n.md", raw)
	require.NotNil(t, got.Frontmatter)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(got.Frontmatter, &meta))
	assert.Equal(t, "X", meta["title"])
	assert.Equal(t, "value", meta["custom"])
}

func TestMalformedFrontmatterTreatedAsBody(t *testing.T) {
	raw := []byte("---\n: : not yaml [\n---\n# Title\n")
	got := Extract("n.md", raw)
	assert.Nil(t, got.Frontmatter)
	assert.Equal(t, "Title", got.Title)
}

func TestUnterminatedFrontmatterTreatedAsBody(t *testing.T) {
	raw := []byte("---\ntitle: X\nnever closed\n")
	got := Extract("n.md", raw)
	assert.Nil(t, got.Frontmatter)
}

func TestStrippedContentDropsSyntax(t *testing.T) {
	raw := []byte("# Heading\n\nSome **bold** and *italic* text with a [link](https://example.com).\n\n- item one\n- item two\n")
	got := Extract("n.md", raw)

	assert.Contains(t, got.StrippedContent, "Heading")
	assert.Contains(t, got.StrippedContent, "Some bold and italic text with a link.")
	assert.Contains(t, got.StrippedContent, "item one")
	assert.NotContains(t, got.StrippedContent, "**")
	assert.NotContains(t, got.StrippedContent, "https://example.com")
	assert.NotContains(t, got.StrippedContent, "#")
}

func TestStrippedContentKeepsCode(t *testing.T) {
	raw := []byte("```go\nfmt.Println(1)\n```\n")
	got := Extract("n.md", raw)
	assert.Contains(t, got.StrippedContent, "fmt.Println(1)")
	assert.NotContains(t, got.StrippedContent, "```")
}

func TestExtractIsPure(t *testing.T) {
	raw := []byte("---\ntags: [b, a]\n---\n# T\nbody #c\n")
	first := Extract("n.md", raw)
	second := Extract("n.md", raw)
	assert.Equal(t, first, second)
}

func TestEmptyInput(t *testing.T) {
	got := Extract("empty.md", nil)
	assert.Equal(t, "empty", got.Title)
	assert.Empty(t, got.Tags)
	assert.Empty(t, got.StrippedContent)
	assert.Nil(t, got.Frontmatter)
}
