package dialect

import (
	"errors"
	"strconv"
)

var errNegative = errors.New("must not be negative")

// unescapeFirst resolves backslash escapes such as \t or \u0009 and returns the
// first resulting character. s must not be empty.
func unescapeFirst(s string) (rune, error) {
	r, _, _, err := strconv.UnquoteChar(s, 0)
	if err != nil {
		// A lone backslash or an unknown escape is taken literally.
		if s[0] == '\\' {
			return '\\', nil
		}
		return 0, err
	}
	return r, nil
}
