// Package memorial scrapes two independent memorial-directory sites. All
// extraction is best-effort pattern matching over rendered markup; callers
// record a "checked, nothing found" sentinel when it yields nothing.
package memorial

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

func clean(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// renderLines flattens a parsed document into text lines. <br> and block
// elements become line breaks so one memorial entry lands on one line, which
// is what the line-oriented extraction below depends on.
func renderLines(doc *html.Node) []string {
	var buf bytes.Buffer
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
		case html.ElementNode:
			switch n.Data {
			case "br", "p", "div", "li", "tr":
				buf.WriteByte('\n')
			case "script", "style":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	raw := strings.Split(buf.String(), "\n")
	lines := make([]string, 0, len(raw))
	for _, ln := range raw {
		if ln = clean(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	return lines
}

// anchors collects every href in the document matching the pattern.
func anchors(doc *html.Node, pattern *regexp.Regexp) []string {
	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" && pattern.MatchString(attr.Val) {
					hrefs = append(hrefs, attr.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return hrefs
}
