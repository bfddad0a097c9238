package formula

import (
	"fmt"
	"strings"

	"github.com/rulego/dlquery/exc"
)

// ErrorType 定义解析错误类型
type ErrorType int

const (
	ErrorTypeSyntax ErrorType = iota
	ErrorTypeUnexpectedToken
	ErrorTypeUnexpectedEOF
	ErrorTypeUnbalancedParens
	ErrorTypeInvalidLiteral
	ErrorTypeUnterminated
	ErrorTypeTooDeep
)

// ParseError 公式解析错误，携带位置信息
type ParseError struct {
	Type     ErrorType
	Message  string
	Position int
	Line     int
	Column   int
	Token    string
	Expected []string
}

// Error 实现 error 接口
func (e *ParseError) Error() string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("[%s] %s", e.typeName(), e.Message))
	if e.Line > 0 && e.Column > 0 {
		builder.WriteString(fmt.Sprintf(" at line %d, column %d", e.Line, e.Column))
	} else if e.Position >= 0 {
		builder.WriteString(fmt.Sprintf(" at position %d", e.Position))
	}
	if e.Token != "" {
		builder.WriteString(fmt.Sprintf(" (found '%s')", e.Token))
	}
	if len(e.Expected) > 0 {
		builder.WriteString(fmt.Sprintf(", expected: %s", strings.Join(e.Expected, ", ")))
	}
	return builder.String()
}

// Unwrap exposes the coded error kind of the parse failure
func (e *ParseError) Unwrap() error {
	return e.kind().New(e.Message).
		With("position", e.Position).
		With("line", e.Line).
		With("column", e.Column).
		With("token", e.Token)
}

// Code returns the stable error code
func (e *ParseError) Code() string {
	return e.kind().Code
}

func (e *ParseError) kind() *exc.Kind {
	switch e.Type {
	case ErrorTypeUnexpectedToken, ErrorTypeUnbalancedParens:
		return exc.ErrParseUnexpectedToken
	case ErrorTypeUnexpectedEOF, ErrorTypeUnterminated:
		return exc.ErrParseUnexpectedEOF
	case ErrorTypeInvalidLiteral:
		return exc.ErrParseInvalidLiteral
	case ErrorTypeTooDeep:
		return exc.ErrParseTooDeep
	default:
		return exc.ErrParse
	}
}

func (e *ParseError) typeName() string {
	switch e.Type {
	case ErrorTypeSyntax:
		return "SYNTAX_ERROR"
	case ErrorTypeUnexpectedToken:
		return "UNEXPECTED_TOKEN"
	case ErrorTypeUnexpectedEOF:
		return "UNEXPECTED_EOF"
	case ErrorTypeUnbalancedParens:
		return "UNBALANCED_PARENS"
	case ErrorTypeInvalidLiteral:
		return "INVALID_LITERAL"
	case ErrorTypeUnterminated:
		return "UNTERMINATED"
	case ErrorTypeTooDeep:
		return "TOO_DEEP"
	default:
		return "UNKNOWN_ERROR"
	}
}

// lineColumn converts a byte offset to 1-based line and column
func lineColumn(text string, pos int) (int, int) {
	if pos > len(text) {
		pos = len(text)
	}
	line, col := 1, 1
	for i := 0; i < pos; i++ {
		if text[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
