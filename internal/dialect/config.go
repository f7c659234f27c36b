// Package dialect turns job parameters into the formatting rules used to split
// delimited text into rows and cells.
package dialect

import (
	"log"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

const (
	DefaultSeparator = ','
	DefaultQuote     = '"'
)

// Config is the immutable set of dialect options for one job. The zero value
// is not usable; start from Default or Parse.
type Config struct {
	Separator rune
	Quote     rune
	// Escape is the escape character inside quoted cells. Zero means the
	// quote character itself, so a doubled quote yields one literal quote.
	Escape rune

	QuoteDisabled  bool
	EscapeDisabled bool

	IgnoreLeadingWhitespaces  bool
	IgnoreTrailingWhitespaces bool
	IgnoreEmptyLines          bool
	IgnoreLinePattern         *regexp.Regexp

	// NullString, when set, is the literal that denotes a null cell.
	NullString string
	// BreakString, when set, replaces line breaks inside quoted cells.
	BreakString string

	SkipLines int
}

// Default returns the built-in dialect: comma separated, double quoted.
func Default() Config {
	return Config{
		Separator: DefaultSeparator,
		Quote:     DefaultQuote,
	}
}

// EscapeRune returns the effective escape character.
func (c Config) EscapeRune() rune {
	if c.Escape == 0 {
		return c.Quote
	}
	return c.Escape
}

// Parse builds a Config from job parameters. Invalid values are logged and the
// option keeps its default; Parse never fails.
func Parse(params model.Params) Config {
	cfg := Default()

	if v := params.Get(model.ParamSeparatorCharacter); v != "" {
		if r, err := unescapeFirst(v); err != nil {
			warn(model.ParamSeparatorCharacter, v, err)
		} else {
			cfg.Separator = r
		}
	}
	if v := params.Get(model.ParamQuoteCharacter); v != "" {
		cfg.Quote, _ = utf8.DecodeRuneInString(v)
	}
	if v := params.Get(model.ParamEscapeCharacter); v != "" {
		cfg.Escape, _ = utf8.DecodeRuneInString(v)
	}

	parseBool(params, model.ParamQuoteDisabled, &cfg.QuoteDisabled)
	parseBool(params, model.ParamEscapeDisabled, &cfg.EscapeDisabled)
	parseBool(params, model.ParamIgnoreLeadingWS, &cfg.IgnoreLeadingWhitespaces)
	parseBool(params, model.ParamIgnoreTrailingWS, &cfg.IgnoreTrailingWhitespaces)
	parseBool(params, model.ParamIgnoreEmptyLines, &cfg.IgnoreEmptyLines)

	if v := params.Get(model.ParamBreakString); v != "" {
		cfg.BreakString = v
	}
	if v := params.Get(model.ParamNullString); v != "" {
		cfg.NullString = v
	}

	if v := params.Get(model.ParamIgnoreLinePatterns); v != "" {
		// Lines are dropped only when the whole line matches.
		re, err := regexp.Compile(`^(?:` + v + `)$`)
		if err != nil {
			warn(model.ParamIgnoreLinePatterns, v, err)
		} else {
			cfg.IgnoreLinePattern = re
		}
	}

	if v := params.Get(model.ParamSkipLines); v != "" {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil:
			warn(model.ParamSkipLines, v, err)
		case n < 0:
			warn(model.ParamSkipLines, v, errNegative)
		default:
			cfg.SkipLines = n
		}
	}

	return cfg
}

// ParseBool reads a boolean job parameter, returning def when it is unset or
// unparseable.
func ParseBool(params model.Params, key string, def bool) bool {
	v := def
	parseBool(params, key, &v)
	return v
}

// ParseInt reads a non-negative integer job parameter, returning def when it
// is unset, unparseable or negative.
func ParseInt(params model.Params, key string, def int) int {
	v := params.Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err == nil && n < 0 {
		err = errNegative
	}
	if err != nil {
		warn(key, v, err)
		return def
	}
	return n
}

func parseBool(params model.Params, key string, dst *bool) {
	v := params.Get(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		warn(key, v, err)
		return
	}
	*dst = b
}

func warn(key, value string, err error) {
	log.Printf("dialect: failed to load %s=%q, using default: %v", key, value, err)
}
