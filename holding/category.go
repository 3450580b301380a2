/*
category.go - Typed category labels with explicit sort ordinals

PURPOSE:
  Grouping dimensions (region, size class, ...) carry labels like
  "1_Small", "2_Medium", "10_Estates". Sorting those lexically puts 10
  before 2, so the ordinal is parsed ONCE at construction time and kept
  as a typed field. Display text has the prefix stripped.

ORDERING RULE:
  - Labels with a numeric prefix ("<digits>_rest" or "<digits> rest")
    sort by the prefix value, then by stripped label.
  - Labels without a prefix sort lexically AFTER all prefixed ones.

SEE ALSO:
  - ../stats: orders comparison rows with Category.Less
*/
package holding

import (
	"strconv"
	"strings"
	"unicode"
)

// unprefixedOrdinal sorts plain labels after every numeric-prefixed one.
const unprefixedOrdinal = int(^uint(0) >> 1)

// Category is a grouping-dimension value: a display label plus the sort
// ordinal it was constructed with.
type Category struct {
	Ordinal int
	Label   string
}

// NewCategory parses a raw label into a Category. A leading run of digits
// followed by '_' or a space is taken as the ordinal and stripped from the
// label; anything else keeps the raw label and sorts lexically last.
func NewCategory(raw string) Category {
	i := 0
	for i < len(raw) && unicode.IsDigit(rune(raw[i])) {
		i++
	}
	if i > 0 && i < len(raw) && (raw[i] == '_' || raw[i] == ' ') {
		ord := 0
		for _, r := range raw[:i] {
			ord = ord*10 + int(r-'0')
		}
		return Category{Ordinal: ord, Label: strings.TrimSpace(raw[i+1:])}
	}
	return Category{Ordinal: unprefixedOrdinal, Label: raw}
}

// Raw reconstructs the prefixed form NewCategory accepts, for storage
// round-trips.
func (c Category) Raw() string {
	if c.Ordinal == unprefixedOrdinal {
		return c.Label
	}
	return strconv.Itoa(c.Ordinal) + "_" + c.Label
}

// Less orders categories by ordinal, then label.
func (c Category) Less(o Category) bool {
	if c.Ordinal != o.Ordinal {
		return c.Ordinal < o.Ordinal
	}
	return c.Label < o.Label
}

// IsZero reports whether the category was never set.
func (c Category) IsZero() bool {
	return c.Ordinal == 0 && c.Label == ""
}

func (c Category) String() string { return c.Label }
