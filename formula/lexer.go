package formula

import "strings"

type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIllegal
	TokenIdent
	TokenField
	TokenString
	TokenInteger
	TokenFloat
	TokenDate
	TokenComma
	TokenLParen
	TokenRParen
	TokenPlus
	TokenMinus
	TokenAsterisk
	TokenSlash
	TokenPercent
	TokenCaret
	TokenEQ
	TokenNE
	TokenLT
	TokenLE
	TokenGT
	TokenGE
)

type Token struct {
	Type  TokenType
	Value string
	Pos   int
	End   int
}

// Is reports whether the token is the given keyword, case-insensitively.
func (t Token) Is(keyword string) bool {
	return t.Type == TokenIdent && strings.EqualFold(t.Value, keyword)
}

type Lexer struct {
	input   string
	pos     int
	readPos int
	ch      byte
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) NextToken() Token {
	if bad, ok := l.skipWhitespaceAndComments(); !ok {
		return bad
	}
	start := l.pos
	tok := func(t TokenType, v string) Token {
		return Token{Type: t, Value: v, Pos: start, End: l.pos}
	}

	switch l.ch {
	case 0:
		return Token{Type: TokenEOF, Pos: start, End: start}
	case ',':
		l.readChar()
		return tok(TokenComma, ",")
	case '(':
		l.readChar()
		return tok(TokenLParen, "(")
	case ')':
		l.readChar()
		return tok(TokenRParen, ")")
	case '+':
		l.readChar()
		return tok(TokenPlus, "+")
	case '-':
		l.readChar()
		return tok(TokenMinus, "-")
	case '*':
		l.readChar()
		return tok(TokenAsterisk, "*")
	case '/':
		l.readChar()
		return tok(TokenSlash, "/")
	case '%':
		l.readChar()
		return tok(TokenPercent, "%")
	case '^':
		l.readChar()
		return tok(TokenCaret, "^")
	case '=':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
		}
		return tok(TokenEQ, "=")
	case '!':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return tok(TokenNE, "!=")
		}
		return tok(TokenIllegal, "!")
	case '<':
		l.readChar()
		switch l.ch {
		case '=':
			l.readChar()
			return tok(TokenLE, "<=")
		case '>':
			l.readChar()
			return tok(TokenNE, "!=")
		}
		return tok(TokenLT, "<")
	case '>':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return tok(TokenGE, ">=")
		}
		return tok(TokenGT, ">")
	case '[':
		value, ok := l.readQuoted(']')
		if !ok {
			return Token{Type: TokenIllegal, Value: "unterminated field reference", Pos: start, End: l.pos}
		}
		return tok(TokenField, value)
	case '\'', '"':
		quote := l.ch
		value, ok := l.readQuoted(quote)
		if !ok {
			return Token{Type: TokenIllegal, Value: "unterminated string", Pos: start, End: l.pos}
		}
		return tok(TokenString, value)
	case '#':
		l.readChar()
		begin := l.pos
		for l.ch != '#' && l.ch != 0 {
			l.readChar()
		}
		if l.ch == 0 {
			return Token{Type: TokenIllegal, Value: "unterminated date literal", Pos: start, End: l.pos}
		}
		value := l.input[begin:l.pos]
		l.readChar()
		return tok(TokenDate, strings.TrimSpace(value))
	}

	if isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())) {
		return l.readNumber(start)
	}
	if isIdentStart(l.ch) {
		for isIdentPart(l.ch) {
			l.readChar()
		}
		return tok(TokenIdent, l.input[start:l.pos])
	}

	ch := l.ch
	l.readChar()
	return tok(TokenIllegal, string(ch))
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) skipWhitespaceAndComments() (Token, bool) {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
		case l.ch == '-' && l.peekChar() == '-':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			start := l.pos
			l.readChar()
			l.readChar()
			for !(l.ch == '*' && l.peekChar() == '/') {
				if l.ch == 0 {
					return Token{Type: TokenIllegal, Value: "unterminated comment", Pos: start, End: l.pos}, false
				}
				l.readChar()
			}
			l.readChar()
			l.readChar()
		default:
			return Token{}, true
		}
	}
}

// readQuoted reads up to the closing quote, backslash escapes the next byte.
// Inside string quotes a doubled quote stands for the quote itself.
func (l *Lexer) readQuoted(closing byte) (string, bool) {
	var sb strings.Builder
	l.readChar()
	for {
		if l.ch == closing {
			if closing == ']' || l.peekChar() != closing {
				break
			}
			sb.WriteByte(closing)
			l.readChar()
			l.readChar()
			continue
		}
		if l.ch == 0 {
			return sb.String(), false
		}
		if l.ch == '\\' {
			l.readChar()
			if l.ch == 0 {
				return sb.String(), false
			}
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(l.ch)
			}
			l.readChar()
			continue
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
	l.readChar()
	return sb.String(), true
}

func (l *Lexer) readNumber(start int) Token {
	isFloat := false
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			isFloat = true
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	t := TokenInteger
	if isFloat {
		t = TokenFloat
	}
	return Token{Type: t, Value: l.input[start:l.pos], Pos: start, End: l.pos}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
