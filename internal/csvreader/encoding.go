package csvreader

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

// Decode wraps src so that it yields UTF-8 text. name is a WHATWG or IANA
// encoding label such as "Shift_JIS" or "windows-1252"; blank means UTF-8.
func Decode(src io.Reader, name string) (io.Reader, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = model.DefaultEncoding
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("csvreader: unsupported encoding %q: %w", name, err)
	}
	if enc == unicode.UTF8 {
		return src, nil
	}
	return transform.NewReader(src, enc.NewDecoder()), nil
}
