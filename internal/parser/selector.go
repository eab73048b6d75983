package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type Field string

const (
	FieldTitle        Field = "title"
	FieldPrice        Field = "price"
	FieldImage        Field = "image"
	FieldAvailability Field = "availability"
	FieldColor        Field = "color"
	FieldSize         Field = "size"
)

// Selector is one candidate for a field. Attr names an attribute to read;
// empty means the element text.
type Selector struct {
	CSS  string
	Attr string
}

func text(css string) Selector { return Selector{CSS: css} }

func attr(css, name string) Selector { return Selector{CSS: css, Attr: name} }

func texts(css ...string) []Selector {
	out := make([]Selector, len(css))
	for i, c := range css {
		out[i] = text(c)
	}
	return out
}

func srcs(css ...string) []Selector {
	out := make([]Selector, len(css))
	for i, c := range css {
		out[i] = attr(c, "src")
	}
	return out
}

// resolve walks candidates in order and returns the first value accepted by
// accept. Within one selector, matched elements are tried in document order.
func resolve(root *goquery.Selection, candidates []Selector, accept func(string) bool) string {
	for _, sel := range candidates {
		var found string
		root.Find(sel.CSS).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			v := value(s, sel.Attr)
			if v != "" && accept(v) {
				found = v
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func value(s *goquery.Selection, attrName string) string {
	if attrName != "" {
		return strings.TrimSpace(s.AttrOr(attrName, ""))
	}
	return strings.Join(strings.Fields(s.Text()), " ")
}

func nonEmpty(string) bool { return true }
