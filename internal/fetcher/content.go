package fetcher

import (
	"bytes"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Content is the visible text and metadata of an HTML document.
type Content struct {
	Title           string
	MetaDescription string
	Text            string
}

// skipped elements never contribute visible text.
var skipped = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"svg":      true,
	"iframe":   true,
	"nav":      true,
	"footer":   true,
}

// ExtractContent parses body and returns its title, meta description and
// whitespace-collapsed visible text capped at maxChars runes.
func ExtractContent(body []byte, maxChars int) Content {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return Content{}
	}

	var c Content
	var sb strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if c.Title == "" {
					c.Title = collapse(textOf(n))
				}
			case "meta":
				if c.MetaDescription == "" && isDescriptionMeta(n) {
					c.MetaDescription = collapse(attr(n, "content"))
				}
			}
			if skipped[n.Data] {
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	c.Text = truncateRunes(collapse(sb.String()), maxChars)
	return c
}

func isDescriptionMeta(n *html.Node) bool {
	name := strings.ToLower(attr(n, "name"))
	prop := strings.ToLower(attr(n, "property"))
	return name == "description" || prop == "og:description"
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			sb.WriteString(child.Data)
		}
	}
	return sb.String()
}

// collapse folds every whitespace run into a single space.
func collapse(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

func truncateRunes(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}
