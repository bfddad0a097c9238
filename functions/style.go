package functions

import (
	"strconv"
	"strings"
	"time"

	"github.com/rulego/dlquery/formula"
)

// Style 后端的字面量与标识符写法
type Style struct {
	Name           string
	IdentQuote     string
	TrueLiteral    string
	FalseLiteral   string
	NullLiteral    string
	DateFormat     string // %s receives YYYY-MM-DD
	DatetimeFormat string // %s receives YYYY-MM-DD hh:mm:ss
	ListOpen       string
	ListClose      string
	// BackslashEscapes doubles backslashes in string literals
	BackslashEscapes bool
	// OffsetNeedsLimit is the LIMIT value written when only OFFSET is set
	OffsetNeedsLimit string
	// StringLiteral overrides string quoting when set
	StringLiteral func(s string) string
}

// ANSIStyle is the default SQL style.
func ANSIStyle() *Style {
	return &Style{
		Name:           "ansi",
		IdentQuote:     `"`,
		TrueLiteral:    "TRUE",
		FalseLiteral:   "FALSE",
		NullLiteral:    "NULL",
		DateFormat:     "DATE '%s'",
		DatetimeFormat: "TIMESTAMP '%s'",
		ListOpen:       "(",
		ListClose:      ")",
	}
}

// QuoteIdent quotes an identifier, doubling embedded quotes.
func (s *Style) QuoteIdent(name string) string {
	q := s.IdentQuote
	if q == "" {
		return name
	}
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// String renders a string literal.
func (s *Style) String(v string) string {
	if s.StringLiteral != nil {
		return s.StringLiteral(v)
	}
	if s.BackslashEscapes {
		v = strings.ReplaceAll(v, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func (s *Style) Bool(v bool) string {
	if v {
		return s.TrueLiteral
	}
	return s.FalseLiteral
}

func (s *Style) Null() string { return s.NullLiteral }

func (s *Style) Date(t time.Time) string {
	return strings.Replace(s.DateFormat, "%s", t.Format("2006-01-02"), 1)
}

func (s *Style) Datetime(t time.Time) string {
	return strings.Replace(s.DatetimeFormat, "%s", t.UTC().Format("2006-01-02 15:04:05"), 1)
}

func (s *Style) Integer(v int64) string { return strconv.FormatInt(v, 10) }

func (s *Style) Float(v float64) string { return formula.FormatFloat(v) }

// List renders an IN list.
func (s *Style) List(items []string) string {
	return s.ListOpen + strings.Join(items, ", ") + s.ListClose
}

// LimitOffset renders the LIMIT/OFFSET tail, empty when both are nil.
func (s *Style) LimitOffset(limit, offset *int) string {
	var parts []string
	switch {
	case limit != nil:
		parts = append(parts, "LIMIT "+strconv.Itoa(*limit))
	case offset != nil && s.OffsetNeedsLimit != "":
		parts = append(parts, "LIMIT "+s.OffsetNeedsLimit)
	}
	if offset != nil {
		parts = append(parts, "OFFSET "+strconv.Itoa(*offset))
	}
	return strings.Join(parts, " ")
}
