// Package csvreader reads delimited text according to a dialect.Config.
package csvreader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/codelibs/fess-ds-csv/internal/dialect"
	"github.com/codelibs/fess-ds-csv/internal/model"
)

var (
	// ErrUnterminatedQuote is returned when the input ends inside a quoted cell.
	ErrUnterminatedQuote = errors.New("csvreader: unterminated quoted cell")
	// ErrInvalidEncoding is returned when a line is not valid UTF-8 after decoding.
	ErrInvalidEncoding = errors.New("csvreader: invalid character encoding")
)

const bom = "\ufeff"

// Reader produces rows from a character stream. It is not safe for concurrent use.
type Reader struct {
	cfg     dialect.Config
	br      *bufio.Reader
	line    int
	skipped bool
}

// NewReader returns a Reader over src. src must yield UTF-8; use Decode for
// other encodings.
func NewReader(src io.Reader, cfg dialect.Config) *Reader {
	return &Reader{
		cfg: cfg,
		br:  bufio.NewReaderSize(src, 64*1024),
	}
}

// LineNumber returns the number of physical lines consumed so far.
func (r *Reader) LineNumber() int { return r.line }

// Read returns the next row. It returns io.EOF when the input is exhausted.
// Any other error is fatal for the stream.
func (r *Reader) Read() (model.Row, error) {
	if !r.skipped {
		r.skipped = true
		for i := 0; i < r.cfg.SkipLines; i++ {
			if _, _, err := r.readLine(); err != nil {
				return model.Row{}, err
			}
		}
	}

	for {
		text, term, err := r.readLine()
		if err != nil {
			return model.Row{}, err
		}
		if r.cfg.IgnoreEmptyLines && strings.TrimSpace(text) == "" {
			continue
		}
		if r.cfg.IgnoreLinePattern != nil && r.cfg.IgnoreLinePattern.MatchString(text) {
			continue
		}
		cells, err := r.parseRecord(text, term)
		if err != nil {
			return model.Row{}, err
		}
		return model.Row{Line: r.line, Cells: cells}, nil
	}
}

// readLine returns one physical line without its terminator.
func (r *Reader) readLine() (string, string, error) {
	s, err := r.br.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", "", fmt.Errorf("csvreader: read line %d: %w", r.line+1, err)
		}
		if s == "" {
			return "", "", io.EOF
		}
	}
	r.line++

	term := ""
	if strings.HasSuffix(s, "\n") {
		s = s[:len(s)-1]
		term = "\n"
		if strings.HasSuffix(s, "\r") {
			s = s[:len(s)-1]
			term = "\r\n"
		}
	}
	if r.line == 1 {
		s = strings.TrimPrefix(s, bom)
	}
	if !utf8.ValidString(s) {
		return "", "", fmt.Errorf("%w at line %d", ErrInvalidEncoding, r.line)
	}
	return s, term, nil
}

// cell accumulates one cell. Text read before an opening quote or outside
// quotes goes to raw; quoted content goes to body and anything after the
// closing quote goes to tail.
type cell struct {
	raw    strings.Builder
	body   strings.Builder
	tail   strings.Builder
	quoted bool
}

func (c *cell) reset() {
	c.raw.Reset()
	c.body.Reset()
	c.tail.Reset()
	c.quoted = false
}

func (r *Reader) finish(c *cell) string {
	if c.quoted {
		tail := c.tail.String()
		if r.cfg.IgnoreTrailingWhitespaces {
			tail = strings.TrimRightFunc(tail, unicode.IsSpace)
		}
		return c.body.String() + tail
	}

	v := c.raw.String()
	if r.cfg.IgnoreLeadingWhitespaces {
		v = strings.TrimLeftFunc(v, unicode.IsSpace)
	}
	if r.cfg.IgnoreTrailingWhitespaces {
		v = strings.TrimRightFunc(v, unicode.IsSpace)
	}
	if r.cfg.NullString != "" && v == r.cfg.NullString {
		return ""
	}
	return v
}

// canOpenQuote reports whether a quote character at this point starts a
// quoted cell.
func (r *Reader) canOpenQuote(c *cell) bool {
	if r.cfg.QuoteDisabled || c.quoted {
		return false
	}
	if c.raw.Len() == 0 {
		return true
	}
	return r.cfg.IgnoreLeadingWhitespaces && strings.TrimSpace(c.raw.String()) == ""
}

func (r *Reader) parseRecord(text, term string) ([]string, error) {
	var (
		cells   []string
		cur     cell
		inQuote bool
		start   = r.line
		sep     = r.cfg.Separator
		quote   = r.cfg.Quote
		esc     = r.cfg.EscapeRune()
		escOn   = !r.cfg.EscapeDisabled
	)

	for {
		for i := 0; i < len(text); {
			c, w := utf8.DecodeRuneInString(text[i:])

			if inQuote {
				next, nw := utf8.DecodeRuneInString(text[i+w:])
				switch {
				case escOn && c == esc && esc != quote:
					if i+w < len(text) && (next == quote || next == esc) {
						cur.body.WriteRune(next)
						i += w + nw
						continue
					}
					cur.body.WriteRune(c)
				case c == quote:
					if escOn && esc == quote && i+w < len(text) && next == quote {
						cur.body.WriteRune(quote)
						i += w + nw
						continue
					}
					inQuote = false
				default:
					cur.body.WriteRune(c)
				}
				i += w
				continue
			}

			switch {
			case c == sep:
				cells = append(cells, r.finish(&cur))
				cur.reset()
			case c == quote && r.canOpenQuote(&cur):
				cur.quoted = true
				inQuote = true
			case cur.quoted:
				cur.tail.WriteRune(c)
			default:
				cur.raw.WriteRune(c)
			}
			i += w
		}

		if !inQuote {
			break
		}

		next, nextTerm, err := r.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w opened at line %d", ErrUnterminatedQuote, start)
			}
			return nil, err
		}
		if r.cfg.BreakString != "" {
			cur.body.WriteString(r.cfg.BreakString)
		} else if term != "" {
			cur.body.WriteString(term)
		} else {
			cur.body.WriteString("\n")
		}
		text, term = next, nextTerm
	}

	cells = append(cells, r.finish(&cur))
	return cells, nil
}
