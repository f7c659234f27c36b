package csvreader

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/codelibs/fess-ds-csv/internal/dialect"
	"github.com/codelibs/fess-ds-csv/internal/model"
)

func readAll(t *testing.T, input string, cfg dialect.Config) []model.Row {
	t.Helper()
	r := NewReader(strings.NewReader(input), cfg)
	var rows []model.Row
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		rows = append(rows, row)
	}
}

func cells(rows []model.Row) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Cells)
	}
	return out
}

func TestRead_Basic(t *testing.T) {
	rows := readAll(t, "a,b,c\n1,2,3\n4,,6\n", dialect.Default())
	want := [][]string{{"a", "b", "c"}, {"1", "2", "3"}, {"4", "", "6"}}
	if got := cells(rows); !reflect.DeepEqual(got, want) {
		t.Fatalf("cells = %v, want %v", got, want)
	}
	for i, row := range rows {
		if row.Line != i+1 {
			t.Errorf("row %d Line = %d, want %d", i, row.Line, i+1)
		}
	}
}

func TestRead_NoTrailingNewlineAndCRLF(t *testing.T) {
	rows := readAll(t, "a,b\r\nc,d", dialect.Default())
	want := [][]string{{"a", "b"}, {"c", "d"}}
	if got := cells(rows); !reflect.DeepEqual(got, want) {
		t.Fatalf("cells = %v, want %v", got, want)
	}
}

func TestRead_QuotedCells(t *testing.T) {
	input := `"x, y","say ""hi""",plain` + "\n"
	rows := readAll(t, input, dialect.Default())
	want := [][]string{{"x, y", `say "hi"`, "plain"}}
	if got := cells(rows); !reflect.DeepEqual(got, want) {
		t.Fatalf("cells = %v, want %v", got, want)
	}
}

func TestRead_MultilineQuotedCell(t *testing.T) {
	input := "id,body\n1,\"first\nsecond\"\n2,x\n"
	rows := readAll(t, input, dialect.Default())
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[1].Cells[1] != "first\nsecond" {
		t.Errorf("multiline cell = %q", rows[1].Cells[1])
	}
	if rows[1].Line != 3 {
		t.Errorf("multiline row Line = %d, want 3", rows[1].Line)
	}
	if rows[2].Line != 4 {
		t.Errorf("following row Line = %d, want 4", rows[2].Line)
	}
}

func TestRead_BreakString(t *testing.T) {
	cfg := dialect.Default()
	cfg.BreakString = "<br>"
	rows := readAll(t, "\"a\r\nb\nc\",d\n", cfg)
	if got := rows[0].Cells[0]; got != "a<br>b<br>c" {
		t.Errorf("cell = %q, want %q", got, "a<br>b<br>c")
	}
}

func TestRead_SeparatorQuoteSkipLines(t *testing.T) {
	cfg := dialect.Parse(model.Params{
		model.ParamSeparatorCharacter: ";",
		model.ParamQuoteCharacter:     "'",
		model.ParamSkipLines:          "1",
	})
	input := "this line is skipped\n'a;1';b;c\nd;'it''s';f\ng;h;i\n"
	rows := readAll(t, input, cfg)
	want := [][]string{{"a;1", "b", "c"}, {"d", "it's", "f"}, {"g", "h", "i"}}
	if got := cells(rows); !reflect.DeepEqual(got, want) {
		t.Fatalf("cells = %v, want %v", got, want)
	}
	if rows[0].Line != 2 {
		t.Errorf("first row Line = %d, want 2", rows[0].Line)
	}
}

func TestRead_TabSeparator(t *testing.T) {
	cfg := dialect.Parse(model.Params{model.ParamSeparatorCharacter: `\t`})
	rows := readAll(t, "a\tb c\t\"d\te\"\n", cfg)
	want := [][]string{{"a", "b c", "d\te"}}
	if got := cells(rows); !reflect.DeepEqual(got, want) {
		t.Fatalf("cells = %v, want %v", got, want)
	}
}

func TestRead_EscapeCharacter(t *testing.T) {
	cfg := dialect.Default()
	cfg.Escape = '\\'
	rows := readAll(t, `"a\"b","c\\d","e\f"`+"\n", cfg)
	want := [][]string{{`a"b`, `c\d`, `e\f`}}
	if got := cells(rows); !reflect.DeepEqual(got, want) {
		t.Fatalf("cells = %v, want %v", got, want)
	}
}

func TestRead_QuoteDisabled(t *testing.T) {
	cfg := dialect.Default()
	cfg.QuoteDisabled = true
	rows := readAll(t, `"a,b"`+"\n", cfg)
	want := [][]string{{`"a`, `b"`}}
	if got := cells(rows); !reflect.DeepEqual(got, want) {
		t.Fatalf("cells = %v, want %v", got, want)
	}
}

func TestRead_Whitespace(t *testing.T) {
	input := "  a  , \"b \" ,c\n"

	rows := readAll(t, input, dialect.Default())
	want := [][]string{{"  a  ", ` "b " `, "c"}}
	if got := cells(rows); !reflect.DeepEqual(got, want) {
		t.Fatalf("untrimmed cells = %v, want %v", got, want)
	}

	cfg := dialect.Default()
	cfg.IgnoreLeadingWhitespaces = true
	cfg.IgnoreTrailingWhitespaces = true
	rows = readAll(t, input, cfg)
	want = [][]string{{"a", "b ", "c"}}
	if got := cells(rows); !reflect.DeepEqual(got, want) {
		t.Fatalf("trimmed cells = %v, want %v", got, want)
	}
}

func TestRead_NullString(t *testing.T) {
	cfg := dialect.Default()
	cfg.NullString = "NULL"
	rows := readAll(t, "a,NULL,\"NULL\",NULLABLE\n", cfg)
	want := [][]string{{"a", "", "NULL", "NULLABLE"}}
	if got := cells(rows); !reflect.DeepEqual(got, want) {
		t.Fatalf("cells = %v, want %v", got, want)
	}
}

func TestRead_EmptyLines(t *testing.T) {
	input := "a\n\n  \nb\n"

	rows := readAll(t, input, dialect.Default())
	if len(rows) != 4 {
		t.Fatalf("rows without ignore = %d, want 4", len(rows))
	}

	cfg := dialect.Default()
	cfg.IgnoreEmptyLines = true
	rows = readAll(t, input, cfg)
	want := [][]string{{"a"}, {"b"}}
	if got := cells(rows); !reflect.DeepEqual(got, want) {
		t.Fatalf("cells = %v, want %v", got, want)
	}
	if rows[1].Line != 4 {
		t.Errorf("Line = %d, want 4", rows[1].Line)
	}
}

func TestRead_IgnoreLinePattern(t *testing.T) {
	cfg := dialect.Parse(model.Params{model.ParamIgnoreLinePatterns: "#.*"})
	rows := readAll(t, "# header comment with a \" quote\na,b\n#x\nc,d\n", cfg)
	want := [][]string{{"a", "b"}, {"c", "d"}}
	if got := cells(rows); !reflect.DeepEqual(got, want) {
		t.Fatalf("cells = %v, want %v", got, want)
	}
}

func TestRead_SkipMoreLinesThanInput(t *testing.T) {
	cfg := dialect.Default()
	cfg.SkipLines = 5
	r := NewReader(strings.NewReader("a\nb\n"), cfg)
	if _, err := r.Read(); !errors.Is(err, io.EOF) {
		t.Fatalf("Read error = %v, want io.EOF", err)
	}
}

func TestRead_UnterminatedQuote(t *testing.T) {
	r := NewReader(strings.NewReader("a,\"open\nstill open\n"), dialect.Default())
	_, err := r.Read()
	if !errors.Is(err, ErrUnterminatedQuote) {
		t.Fatalf("Read error = %v, want ErrUnterminatedQuote", err)
	}
}

func TestRead_InvalidUTF8(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("ok\n\xff\xfe,bad\n")), dialect.Default())
	if _, err := r.Read(); err != nil {
		t.Fatalf("first Read: %v", err)
	}
	if _, err := r.Read(); !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("second Read error = %v, want ErrInvalidEncoding", err)
	}
}

func TestRead_StripsBOM(t *testing.T) {
	rows := readAll(t, "\ufeffname,age\n", dialect.Default())
	if rows[0].Cells[0] != "name" {
		t.Errorf("first cell = %q, want %q", rows[0].Cells[0], "name")
	}
}

func TestRead_TextAfterClosingQuote(t *testing.T) {
	rows := readAll(t, `"ab"cd,e`+"\n", dialect.Default())
	want := [][]string{{"abcd", "e"}}
	if got := cells(rows); !reflect.DeepEqual(got, want) {
		t.Fatalf("cells = %v, want %v", got, want)
	}
}
