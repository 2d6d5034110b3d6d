package memorial

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func parse(t *testing.T, markup string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func TestRenderLines_BreaksOnBlockElementsAndBR(t *testing.T) {
	doc := parse(t, `<html><body>
		<p>Jane Doe - actress (died May 3, 1997)<br>John Roe - musician (died 1998)</p>
		<div>Another Entry - writer (died June 1, 2001)</div>
	</body></html>`)

	lines := renderLines(doc)
	require.Len(t, lines, 3)
	assert.Equal(t, "Jane Doe - actress (died May 3, 1997)", lines[0])
	assert.Equal(t, "John Roe - musician (died 1998)", lines[1])
	assert.Equal(t, "Another Entry - writer (died June 1, 2001)", lines[2])
}

func TestRenderLines_SkipsScriptAndStyle(t *testing.T) {
	doc := parse(t, `<html><body>
		<script>var x = "not content";</script>
		<style>.hidden { display: none; }</style>
		<p>real content line here</p>
	</body></html>`)

	lines := renderLines(doc)
	require.Len(t, lines, 1)
	assert.Equal(t, "real content line here", lines[0])
}

func TestRenderLines_CollapsesWhitespace(t *testing.T) {
	doc := parse(t, "<html><body><p>Jane \t  Doe  here</p></body></html>")
	lines := renderLines(doc)
	require.Len(t, lines, 1)
	assert.Equal(t, "Jane Doe here", lines[0])
}

func TestAnchors_CollectsMatchingHrefs(t *testing.T) {
	doc := parse(t, `<html><body>
		<a href="https://en.wikipedia.org/wiki/Jane_Doe">Jane</a>
		<a href="https://example.com/other">other</a>
		<a href="http://en.wikipedia.org/wiki/John_Roe">John</a>
		<a>no href</a>
	</body></html>`)

	hrefs := anchors(doc, wikiLinkPattern)
	require.Len(t, hrefs, 2)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Jane_Doe", hrefs[0])
	assert.Equal(t, "http://en.wikipedia.org/wiki/John_Roe", hrefs[1])
}

func TestDatePattern(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"Jane Doe - actress (died May 3, 1997)", "May 3, 1997"},
		{"John Roe (d. 5/13/98) musician", "5/13/98"},
		{"Somebody Else - died in 1987", "1987"},
		{"September 22, 2004 was the date", "September 22, 2004"},
		{"no date in this line at all", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, datePattern.FindString(tc.line), tc.line)
	}
}

func TestMatchWikiLink(t *testing.T) {
	links := []string{
		"https://en.wikipedia.org/wiki/John_Roe",
		"https://en.wikipedia.org/wiki/Jane_Doe_(actress)",
	}

	assert.Equal(t, links[1], matchWikiLink("Jane Doe", links))
	assert.Equal(t, links[0], matchWikiLink("John Roe", links))
	assert.Equal(t, "", matchWikiLink("Nobody Here", links))
	assert.Equal(t, "", matchWikiLink("...", links))
	assert.Equal(t, "", matchWikiLink("", links))
}

func TestNameSplitPattern(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"Jane Doe - actress (died May 3, 1997)", "Jane Doe"},
		{"John Roe (musician) died 1998", "John Roe"},
		{"Plain Name died 1987", "Plain Name died 1987"},
		{"Dash – en-dash entry 1990", "Dash"},
	}

	for _, tc := range tests {
		got := clean(nameSplitPattern.Split(tc.line, 2)[0])
		assert.Equal(t, tc.want, got, tc.line)
	}
}
