package util

import (
	"strings"

	"golang.org/x/net/html"
)

// NodeText returns the text content under n with each text fragment trimmed
// and the non-empty fragments joined by a single space.
func NodeText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)

	walk = func(nd *html.Node) {
		if nd.Type == html.TextNode {
			if s := strings.TrimSpace(nd.Data); s != "" {
				parts = append(parts, s)
			}
		}
		for c := nd.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return strings.Join(parts, " ")
}

// ParseLinks returns the href values of <a> elements under n in document order.
// Anchors without an href attribute are ignored.
func ParseLinks(n *html.Node) []string {
	var out []string
	var walk func(*html.Node)

	walk = func(nd *html.Node) {
		if nd.Type == html.ElementNode && nd.Data == "a" {
			for _, a := range nd.Attr {
				if a.Key == "href" {
					out = append(out, a.Val)
					break
				}
			}
		}
		for c := nd.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return out
}
