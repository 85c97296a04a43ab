package document

import (
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"golang.org/x/net/html"

	"github.com/kailas-cloud/hintd/internal/domain/hint"
)

type viewport struct {
	width, height float64
}

type rect struct {
	x, y, w, h float64
}

// inlineStyle is the subset of an inline style attribute that decides
// whether an element renders.
type inlineStyle struct {
	display    string
	visibility string
	opacity    float64
	hasOpacity bool
}

// Visible reports whether el would be rendered on screen. Layout is not
// computed: geometry comes from a data-rect="x y w h" attribute, styling
// from the inline style of the element and its ancestors.
func (f *Frame) Visible(el hint.Element) bool {
	e, ok := el.(*Element)
	if !ok || e.frame != f {
		return false
	}
	n := e.node

	if n.Data == "input" {
		if t, _ := attr(n, "type"); strings.EqualFold(t, "hidden") {
			return false
		}
	}

	// display, opacity and the hidden attribute cut off a whole subtree;
	// visibility is inherited, so the nearest declaration wins.
	visibility := ""
	for a := n; a != nil; a = a.Parent {
		if a.Type != html.ElementNode {
			continue
		}
		if _, hidden := attr(a, "hidden"); hidden {
			return false
		}
		st := parseInlineStyle(a)
		if st.display == "none" {
			return false
		}
		if st.hasOpacity && st.opacity <= 0 {
			return false
		}
		if visibility == "" && st.visibility != "inherit" {
			visibility = st.visibility
		}
	}
	if visibility == "hidden" || visibility == "collapse" {
		return false
	}

	r, ok := elementRect(n)
	if !ok {
		return true
	}
	if r.w <= 0 || r.h <= 0 {
		return false
	}
	return f.viewport.intersects(r)
}

func (v viewport) intersects(r rect) bool {
	if v.width <= 0 || v.height <= 0 {
		return true
	}
	return r.x < v.width && r.y < v.height && r.x+r.w > 0 && r.y+r.h > 0
}

// elementRect reads data-rect, four numbers separated by spaces or commas.
func elementRect(n *html.Node) (rect, bool) {
	raw, ok := attr(n, "data-rect")
	if !ok {
		return rect{}, false
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(parts) != 4 {
		return rect{}, false
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return rect{}, false
		}
		vals[i] = v
	}
	return rect{x: vals[0], y: vals[1], w: vals[2], h: vals[3]}, true
}

func parseInlineStyle(n *html.Node) inlineStyle {
	var st inlineStyle
	raw, ok := attr(n, "style")
	if !ok {
		return st
	}

	p := css.NewParser(parse.NewInput(strings.NewReader(raw)), true)
	for {
		gt, _, data := p.Next()
		if gt == css.ErrorGrammar {
			if p.Err() != nil {
				break
			}
			continue
		}
		if gt != css.DeclarationGrammar {
			continue
		}

		tok, ok := declValue(p.Values())
		if !ok {
			continue
		}
		val := strings.ToLower(string(tok.Data))
		switch strings.ToLower(string(data)) {
		case "display":
			st.display = val
		case "visibility":
			st.visibility = val
		case "opacity":
			if o, ok := opacityValue(tok); ok {
				st.opacity = o
				st.hasOpacity = true
			}
		}
	}
	return st
}

// declValue returns the first value token of a declaration, ignoring
// whitespace and a trailing !important.
func declValue(vals []css.Token) (css.Token, bool) {
	for _, v := range vals {
		switch {
		case v.TokenType == css.WhitespaceToken:
			continue
		case v.TokenType == css.DelimToken && string(v.Data) == "!":
			return css.Token{}, false
		default:
			return v, true
		}
	}
	return css.Token{}, false
}

func opacityValue(tok css.Token) (float64, bool) {
	switch tok.TokenType {
	case css.NumberToken:
		o, err := strconv.ParseFloat(string(tok.Data), 64)
		return o, err == nil
	case css.PercentageToken:
		o, err := strconv.ParseFloat(strings.TrimSuffix(string(tok.Data), "%"), 64)
		return o / 100, err == nil
	}
	return 0, false
}
