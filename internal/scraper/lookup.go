package scraper

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var spaces = regexp.MustCompile(`\s+`)

// locate finds the node holding f inside container: first by label, then by selector.
func locate(container *goquery.Selection, f field) (*goquery.Selection, bool) {
	if f.label != "" {
		if sel := findByLabel(container, f.label); sel != nil {
			return sel, true
		}
	}
	if f.selector != "" {
		if sel := container.Find(f.selector).First(); sel.Length() > 0 {
			return sel, true
		}
	}
	return nil, false
}

// findByLabel returns the region holding the value announced by label. The label
// element itself is used when its text continues past the label; otherwise the
// value is expected right after it, as trailing text in the same block or as the
// next element.
func findByLabel(container *goquery.Selection, label string) *goquery.Selection {
	var found *goquery.Selection
	container.Find("*").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if hasLabel(ownText(el), label) {
			found = el
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}

	if stripLabel(text(found), label) != "" {
		return found
	}

	parent := found.Parent()
	if followedByText(found.Get(0)) && !parent.IsSelection(container) {
		return parent
	}
	if next := found.Next(); next.Length() > 0 {
		return next
	}
	if parent.Length() > 0 && !parent.IsSelection(container) {
		return parent
	}
	return found
}

// followedByText reports whether n is directly followed by non-blank text
func followedByText(n *html.Node) bool {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		switch s.Type {
		case html.TextNode:
			if strings.TrimSpace(s.Data) != "" {
				return true
			}
		case html.ElementNode:
			return false
		}
	}
	return false
}

// ownText is the text of el's direct text children, without descendants
func ownText(el *goquery.Selection) string {
	var b strings.Builder
	for _, n := range el.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
				b.WriteByte(' ')
			}
		}
	}
	return collapse(b.String())
}

// hasLabel reports whether s starts with label, ignoring case and a trailing colon
func hasLabel(s, label string) bool {
	base := strings.TrimSuffix(label, ":")
	if len(s) < len(base) || !strings.EqualFold(s[:len(base)], base) {
		return false
	}
	rest := s[len(base):]
	if rest == "" {
		return true
	}
	r := []rune(rest)[0]
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// stripLabel removes a leading label (and its colon) from s
func stripLabel(s, label string) string {
	s = collapse(s)
	if label == "" || !hasLabel(s, label) {
		return s
	}
	rest := s[len(strings.TrimSuffix(label, ":")):]
	return strings.TrimSpace(strings.TrimLeft(rest, ": "))
}

// text returns the whitespace-collapsed text of sel
func text(sel *goquery.Selection) string {
	return collapse(sel.Text())
}

// textWithoutLinks returns the text of sel with anchor text removed
func textWithoutLinks(sel *goquery.Selection) string {
	clone := sel.Clone()
	clone.Find("a").Remove()
	return collapse(clone.Text())
}

// fragments returns every non-blank text node under sel in document order
func fragments(sel *goquery.Selection) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := collapse(n.Data); t != "" {
				out = append(out, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return out
}

func collapse(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}
