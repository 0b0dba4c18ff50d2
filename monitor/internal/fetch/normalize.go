package fetch

import (
	"strings"

	"golang.org/x/net/html"
)

// Subtrees with no guideline content. Dropping chrome keeps navigation menu
// tweaks from registering as guideline changes.
var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"nav":      true,
	"header":   true,
	"footer":   true,
}

// NormalizeHTML reduces an HTML document to its visible text: chrome
// subtrees removed, one line per text node, runs of blank lines collapsed.
// The result is the canonical form that gets hashed and diffed.
func NormalizeHTML(doc []byte) (string, error) {
	root, err := html.Parse(strings.NewReader(string(doc)))
	if err != nil {
		return "", err
	}

	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if t := collapseSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return strings.Join(lines, "\n"), nil
}

// collapseSpace trims and squeezes internal whitespace runs to single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
