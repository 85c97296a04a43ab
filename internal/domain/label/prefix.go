package label

import (
	"fmt"
	"slices"

	"github.com/kailas-cloud/hintd/internal/domain"
)

// DefaultAlphabet is the prefix-code alphabet used when none is configured.
const DefaultAlphabet = "auie,ctsrn"

// ValidateAlphabet checks that alphabet has at least two distinct characters.
func ValidateAlphabet(alphabet string) error {
	seen := make(map[rune]struct{})
	for _, r := range alphabet {
		if _, dup := seen[r]; dup {
			return fmt.Errorf("%w: duplicate character %q", domain.ErrInvalidAlphabet, r)
		}
		seen[r] = struct{}{}
	}
	if len(seen) < 2 {
		return fmt.Errorf("%w: need at least 2 characters, got %d", domain.ErrInvalidAlphabet, len(seen))
	}
	return nil
}

// PrefixCodes generates n codes over alphabet such that no code is a prefix
// of another.
//
// The candidate list starts as [""]; the candidate at offset is consumed and
// every alphabet character is prepended to it, until at least n unconsumed
// candidates remain. The n candidates from offset are sorted and each one is
// reversed, which keeps codes of the same length grouped by first keystroke.
func PrefixCodes(n int, alphabet string) ([]string, error) {
	if err := ValidateAlphabet(alphabet); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	chars := []rune(alphabet)
	codes := []string{""}
	offset := 0
	for len(codes)-offset < n || len(codes) == 1 {
		base := codes[offset]
		offset++
		for _, ch := range chars {
			codes = append(codes, string(ch)+base)
		}
	}

	out := slices.Clone(codes[offset : offset+n])
	slices.Sort(out)
	for i, code := range out {
		out[i] = reverse(code)
	}

	if len(out) < n {
		return nil, fmt.Errorf("%w: %d codes for %d hints", domain.ErrLabelCollision, len(out), n)
	}
	return out, nil
}

func reverse(s string) string {
	r := []rune(s)
	slices.Reverse(r)
	return string(r)
}
