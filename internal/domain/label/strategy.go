package label

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/hintd/internal/domain"
)

// Strategy is the labeling scheme of a hint session.
type Strategy string

// Label strategies.
const (
	// Sequential labels hints with their visible rank and supports live filtering.
	Sequential Strategy = "sequential"
	// Prefix labels hints with prefix-free alphabetic codes.
	Prefix Strategy = "prefix"
)

// IsValid checks if the strategy is one of the supported values.
func (s Strategy) IsValid() bool {
	return s == Sequential || s == Prefix
}

// Parse resolves a strategy name. The empty string yields def.
// "filter" and "alphabet" are accepted as aliases.
func Parse(name string, def Strategy) (Strategy, error) {
	switch name {
	case "":
		return def, nil
	case "filter":
		return Sequential, nil
	case "alphabet":
		return Prefix, nil
	}
	s := Strategy(name)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidStrategy, name)
	}
	return s, nil
}

// Rank renders a 1-based visible rank as a sequential label.
func Rank(n int) string {
	return strconv.Itoa(n)
}

// ParseRank reads a sequential label back.
func ParseRank(label string) (int, bool) {
	n, err := strconv.Atoi(label)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
