package lookup

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// parseMetadata prefers <title> over og:title and the description meta
// over og:description.
func parseMetadata(r io.Reader) (*Metadata, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var title, ogTitle, desc, ogDesc, image string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if title == "" {
					title = strings.TrimSpace(text(n))
				}
			case atom.Meta:
				content := attr(n, "content")
				switch {
				case attr(n, "name") == "description":
					desc = first(desc, content)
				case attr(n, "property") == "og:title":
					ogTitle = first(ogTitle, content)
				case attr(n, "property") == "og:description":
					ogDesc = first(ogDesc, content)
				case attr(n, "property") == "og:image":
					image = first(image, content)
				}
			case atom.Body:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return &Metadata{
		Title:       first(title, ogTitle),
		Description: first(desc, ogDesc),
		Image:       image,
	}, nil
}

func first(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
