package tile

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	rowToken = "{row}"
	colToken = "{col}"
)

// Template encodes tile coordinates into file names and back. It holds the
// literal text before, between and after the {row} and {col} placeholders.
type Template struct {
	raw      string
	prefix   string
	middle   string
	suffix   string
	colFirst bool
}

// ParseTemplate validates s and splits it around its placeholders. Both
// {row} and {col} must appear exactly once, separated by a literal that is not
// made only of digits, and the template must not contain a path separator.
func ParseTemplate(s string) (Template, error) {
	if strings.Count(s, rowToken) != 1 || strings.Count(s, colToken) != 1 {
		return Template{}, fmt.Errorf("%w: %q must contain %s and %s exactly once", ErrInvalidTemplate, s, rowToken, colToken)
	}
	if strings.ContainsAny(s, `/\`) {
		return Template{}, fmt.Errorf("%w: %q must not contain a path separator", ErrInvalidTemplate, s)
	}

	ri := strings.Index(s, rowToken)
	ci := strings.Index(s, colToken)

	first, second := rowToken, colToken
	fi, si := ri, ci
	if ci < ri {
		first, second = colToken, rowToken
		fi, si = ci, ri
	}

	t := Template{
		raw:      s,
		prefix:   s[:fi],
		middle:   s[fi+len(first) : si],
		suffix:   s[si+len(second):],
		colFirst: ci < ri,
	}
	if t.middle == "" {
		return Template{}, fmt.Errorf("%w: %q has no separator between %s and %s", ErrInvalidTemplate, s, first, second)
	}
	if allDigits(t.middle) {
		return Template{}, fmt.Errorf("%w: %q is ambiguous, only digits separate %s and %s", ErrInvalidTemplate, s, first, second)
	}
	return t, nil
}

// MustParseTemplate is like ParseTemplate but panics on error.
func MustParseTemplate(s string) Template {
	t, err := ParseTemplate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the template as it was given.
func (t Template) String() string {
	return t.raw
}

// Format returns the file name of the tile at (row, col). Numbers are
// written in decimal without padding.
func (t Template) Format(row, col int) string {
	a, b := row, col
	if t.colFirst {
		a, b = col, row
	}
	return t.prefix + strconv.Itoa(a) + t.middle + strconv.Itoa(b) + t.suffix
}

// Parse extracts the coordinate encoded in name. It reports false when name
// does not have the template's literal structure.
func (t Template) Parse(name string) (Coordinate, bool) {
	rest, ok := strings.CutPrefix(name, t.prefix)
	if !ok {
		return Coordinate{}, false
	}

	// Try every length for the first number so that a middle literal
	// starting with a digit still lines up.
	for i := 1; i <= len(rest) && isDigit(rest[i-1]); i++ {
		after, ok := strings.CutPrefix(rest[i:], t.middle)
		if !ok {
			continue
		}
		second, ok := strings.CutSuffix(after, t.suffix)
		if !ok || !allDigits(second) {
			continue
		}
		a, err := strconv.Atoi(rest[:i])
		if err != nil {
			continue
		}
		b, err := strconv.Atoi(second)
		if err != nil {
			continue
		}
		if t.colFirst {
			return Coordinate{Row: b, Col: a}, true
		}
		return Coordinate{Row: a, Col: b}, true
	}
	return Coordinate{}, false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
