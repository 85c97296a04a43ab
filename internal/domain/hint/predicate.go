package hint

import (
	"regexp"
	"strings"
)

// Predicate decides whether a leaf stays visible under a filter.
type Predicate func(leaf *Leaf) bool

// MatchAll keeps every leaf visible.
func MatchAll(*Leaf) bool { return true }

// TextPredicate matches leaves whose display text contains every
// whitespace-separated token of text, in any order, ignoring case.
// Tokens are literal; regexp metacharacters carry no meaning.
func TextPredicate(text string) Predicate {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return MatchAll
	}

	res := make([]*regexp.Regexp, len(tokens))
	for i, tok := range tokens {
		res[i] = regexp.MustCompile("(?i)" + regexp.QuoteMeta(tok))
	}

	return func(leaf *Leaf) bool {
		t := leaf.Element.Text()
		if t == "" {
			return false
		}
		for _, re := range res {
			if !re.MatchString(t) {
				return false
			}
		}
		return true
	}
}

// CodePredicate matches leaves whose assigned code starts with typed.
// Leaves without a code never match.
func CodePredicate(typed string) Predicate {
	return func(leaf *Leaf) bool {
		return leaf.Label != "" && strings.HasPrefix(leaf.Label, typed)
	}
}
