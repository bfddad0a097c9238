/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package formula

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxDepth 默认最大嵌套深度
const DefaultMaxDepth = 200

var dateLayouts = []string{"2006-01-02"}

var datetimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05Z07:00",
}

// Parser 公式解析器
type Parser struct {
	text     string
	tokens   []Token
	pos      int
	depth    int
	maxDepth int
}

// ParserOption 解析器选项
type ParserOption func(*Parser)

// WithMaxDepth limits the nesting depth of the parsed expression
func WithMaxDepth(depth int) ParserOption {
	return func(p *Parser) {
		if depth > 0 {
			p.maxDepth = depth
		}
	}
}

// NewParser creates a parser for text
func NewParser(text string, opts ...ParserOption) *Parser {
	p := &Parser{text: text, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses formula text into a node tree.
// The same text always produces a structurally equal tree.
//
// Example:
//
//	node, err := formula.Parse("SUM([Sales]) / COUNTD([City])")
func Parse(text string, opts ...ParserOption) (Node, error) {
	return NewParser(text, opts...).Parse()
}

// Parse runs the parser
func (p *Parser) Parse() (Node, error) {
	if err := p.tokenize(); err != nil {
		return nil, err
	}
	if p.cur().Type == TokenEOF {
		return nil, p.errorAt(ErrorTypeUnexpectedEOF, "empty formula", p.cur())
	}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.cur(); tok.Type != TokenEOF {
		if tok.Type == TokenRParen {
			return nil, p.errorAt(ErrorTypeUnbalancedParens, "unbalanced parentheses", tok)
		}
		return nil, p.errorAt(ErrorTypeUnexpectedToken, "unexpected token", tok, "end of formula")
	}
	return node, nil
}

func (p *Parser) tokenize() error {
	lexer := NewLexer(p.text)
	for {
		tok := lexer.NextToken()
		if tok.Type == TokenIllegal {
			errType := ErrorTypeUnexpectedToken
			if strings.HasPrefix(tok.Value, "unterminated") {
				errType = ErrorTypeUnterminated
			}
			return p.errorAt(errType, tok.Value, tok)
		}
		p.tokens = append(p.tokens, tok)
		if tok.Type == TokenEOF {
			return nil
		}
	}
}

func (p *Parser) cur() Token {
	return p.tokens[p.pos]
}

func (p *Parser) peek() Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) advance() Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

// prevEnd is the end offset of the last consumed token
func (p *Parser) prevEnd() int {
	if p.pos == 0 {
		return 0
	}
	return p.tokens[p.pos-1].End
}

func (p *Parser) meta(start int) Meta {
	end := p.prevEnd()
	if end < start {
		end = start
	}
	return Meta{Position: Position{Start: start, End: end}, Text: p.text[start:end]}
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > p.maxDepth {
		return p.errorAt(ErrorTypeTooDeep, fmt.Sprintf("formula nesting exceeds %d levels", p.maxDepth), p.cur())
	}
	return nil
}

func (p *Parser) leave() {
	p.depth--
}

func (p *Parser) errorAt(errType ErrorType, message string, tok Token, expected ...string) *ParseError {
	if tok.Type == TokenEOF && errType == ErrorTypeUnexpectedToken {
		errType = ErrorTypeUnexpectedEOF
	}
	line, col := lineColumn(p.text, tok.Pos)
	value := tok.Value
	if tok.Type == TokenField {
		value = "[" + value + "]"
	}
	return &ParseError{
		Type:     errType,
		Message:  message,
		Position: tok.Pos,
		Line:     line,
		Column:   col,
		Token:    value,
		Expected: expected,
	}
}

func (p *Parser) expect(t TokenType, expected string) (Token, error) {
	tok := p.cur()
	if tok.Type != t {
		if t == TokenRParen {
			return tok, p.errorAt(ErrorTypeUnbalancedParens, "missing closing parenthesis", tok, expected)
		}
		return tok, p.errorAt(ErrorTypeUnexpectedToken, "unexpected token", tok, expected)
	}
	return p.advance(), nil
}

func (p *Parser) expectKeyword(keyword string) error {
	if !p.cur().Is(keyword) {
		return p.errorAt(ErrorTypeUnexpectedToken, "unexpected token", p.cur(), strings.ToUpper(keyword))
	}
	p.advance()
	return nil
}

func (p *Parser) parseExpr() (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	return p.parseOr()
}

func (p *Parser) parseOr() (Node, error) {
	start := p.cur().Pos
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().Is("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = at(NewBinary(OpOr, left, right), p.meta(start))
	}
	return left, nil
}

func (p *Parser) parseAnd() (Node, error) {
	start := p.cur().Pos
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur().Is("and") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = at(NewBinary(OpAnd, left, right), p.meta(start))
	}
	return left, nil
}

func (p *Parser) parseNot() (Node, error) {
	if !p.cur().Is("not") {
		return p.parseComparison()
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	start := p.advance().Pos
	operand, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	return at(NewUnary(OpNot, operand), p.meta(start)), nil
}

func (p *Parser) parseComparison() (Node, error) {
	start := p.cur().Pos
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.cur()
		var op string
		switch tok.Type {
		case TokenEQ:
			op = OpEq
		case TokenNE:
			op = OpNe
		case TokenLT:
			op = OpLt
		case TokenLE:
			op = OpLte
		case TokenGT:
			op = OpGt
		case TokenGE:
			op = OpGte
		}
		if op != "" {
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = at(NewBinary(op, left, right), p.meta(start))
			continue
		}

		negated := false
		if tok.Is("not") {
			next := p.peek()
			if !(next.Is("in") || next.Is("like") || next.Is("between")) {
				return left, nil
			}
			negated = true
			p.advance()
			tok = p.cur()
		}

		switch {
		case tok.Is("is") && !negated:
			p.advance()
			not := false
			if p.cur().Is("not") {
				not = true
				p.advance()
			}
			var unaryOp string
			switch {
			case p.cur().Is("null"):
				unaryOp = pick(not, OpIsNotNull, OpIsNull)
			case p.cur().Is("true"):
				unaryOp = pick(not, OpIsNotTrue, OpIsTrue)
			case p.cur().Is("false"):
				unaryOp = pick(not, OpIsNotFalse, OpIsFalse)
			default:
				return nil, p.errorAt(ErrorTypeUnexpectedToken, "unexpected token", p.cur(), "NULL", "TRUE", "FALSE")
			}
			p.advance()
			left = at(NewUnary(unaryOp, left), p.meta(start))
		case tok.Is("in"):
			p.advance()
			listStart := p.cur().Pos
			if _, err := p.expect(TokenLParen, "("); err != nil {
				return nil, err
			}
			var items []Node
			if p.cur().Type != TokenRParen {
				for {
					item, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					items = append(items, item)
					if p.cur().Type != TokenComma {
						break
					}
					p.advance()
				}
			}
			if _, err := p.expect(TokenRParen, ")"); err != nil {
				return nil, err
			}
			list := at(NewExpressionList(items...), p.meta(listStart))
			left = at(NewBinary(pick(negated, OpNotIn, OpIn), left, list), p.meta(start))
		case tok.Is("like"):
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = at(NewBinary(pick(negated, OpNotLike, OpLike), left, right), p.meta(start))
		case tok.Is("between"):
			p.advance()
			low, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			if err := p.expectKeyword("and"); err != nil {
				return nil, err
			}
			high, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = at(NewTernary(pick(negated, OpNotBetween, OpBetween), left, low, high), p.meta(start))
		default:
			return left, nil
		}
	}
}

func (p *Parser) parseAdditive() (Node, error) {
	start := p.cur().Pos
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.cur().Type {
		case TokenPlus:
			op = OpAdd
		case TokenMinus:
			op = OpSub
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = at(NewBinary(op, left, right), p.meta(start))
	}
}

func (p *Parser) parseMultiplicative() (Node, error) {
	start := p.cur().Pos
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.cur().Type {
		case TokenAsterisk:
			op = OpMul
		case TokenSlash:
			op = OpDiv
		case TokenPercent:
			op = OpMod
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = at(NewBinary(op, left, right), p.meta(start))
	}
}

func (p *Parser) parseUnary() (Node, error) {
	tok := p.cur()
	if tok.Type != TokenMinus && tok.Type != TokenPlus {
		return p.parsePower()
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	p.advance()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if tok.Type == TokenPlus {
		return operand, nil
	}
	switch lit := operand.(type) {
	case *LiteralInteger:
		return at(NewInteger(-lit.Value), p.meta(tok.Pos)), nil
	case *LiteralFloat:
		return at(NewFloat(-lit.Value), p.meta(tok.Pos)), nil
	}
	return at(NewUnary(OpNeg, operand), p.meta(tok.Pos)), nil
}

func (p *Parser) parsePower() (Node, error) {
	start := p.cur().Pos
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.cur().Type != TokenCaret {
		return left, nil
	}
	p.advance()
	right, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return at(NewBinary(OpPow, left, right), p.meta(start)), nil
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.cur()
	switch tok.Type {
	case TokenEOF:
		return nil, p.errorAt(ErrorTypeUnexpectedEOF, "unexpected end of formula", tok, "expression")
	case TokenInteger:
		p.advance()
		v, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, p.errorAt(ErrorTypeInvalidLiteral, "invalid integer literal", tok)
		}
		return at(NewInteger(v), p.meta(tok.Pos)), nil
	case TokenFloat:
		p.advance()
		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, p.errorAt(ErrorTypeInvalidLiteral, "invalid float literal", tok)
		}
		return at(NewFloat(v), p.meta(tok.Pos)), nil
	case TokenString:
		p.advance()
		return at(NewString(tok.Value), p.meta(tok.Pos)), nil
	case TokenField:
		p.advance()
		return at(NewField(tok.Value), p.meta(tok.Pos)), nil
	case TokenDate:
		p.advance()
		return p.dateLiteral(tok)
	case TokenLParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen, ")"); err != nil {
			return nil, err
		}
		return at(NewParenthesized(inner), p.meta(tok.Pos)), nil
	case TokenIdent:
		lower := strings.ToLower(tok.Value)
		switch lower {
		case "true", "false":
			p.advance()
			return at(NewBoolean(lower == "true"), p.meta(tok.Pos)), nil
		case "null":
			p.advance()
			return at(NewNull(), p.meta(tok.Pos)), nil
		case "if":
			return p.parseIf()
		case "case":
			return p.parseCase()
		}
		if keywords[lower] {
			return nil, p.errorAt(ErrorTypeUnexpectedToken, "unexpected keyword", tok, "expression")
		}
		if p.peek().Type == TokenLParen {
			return p.parseCall()
		}
		return nil, p.errorAt(ErrorTypeUnexpectedToken, "unexpected identifier, field names must be enclosed in []", tok)
	}
	return nil, p.errorAt(ErrorTypeUnexpectedToken, "unexpected token", tok, "expression")
}

func (p *Parser) dateLiteral(tok Token) (Node, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, tok.Value); err == nil {
			return at(NewDate(t), p.meta(tok.Pos)), nil
		}
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, tok.Value); err == nil {
			return at(NewDatetime(t), p.meta(tok.Pos)), nil
		}
	}
	return nil, p.errorAt(ErrorTypeInvalidLiteral, "invalid date literal", tok)
}

func (p *Parser) parseIf() (Node, error) {
	start := p.advance().Pos
	var conditions, results []Node
	for {
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("then"); err != nil {
			return nil, err
		}
		result, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
		results = append(results, result)
		if !p.cur().Is("elseif") {
			break
		}
		p.advance()
	}
	var elseExpr Node
	if p.cur().Is("else") {
		p.advance()
		var err error
		if elseExpr, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("end"); err != nil {
		return nil, err
	}
	return at(NewIfBlock(conditions, results, elseExpr), p.meta(start)), nil
}

func (p *Parser) parseCase() (Node, error) {
	start := p.advance().Pos
	subject, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	var whens, thens []Node
	for p.cur().Is("when") {
		p.advance()
		when, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("then"); err != nil {
			return nil, err
		}
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		whens = append(whens, when)
		thens = append(thens, then)
	}
	if len(whens) == 0 {
		return nil, p.errorAt(ErrorTypeUnexpectedToken, "CASE requires at least one WHEN", p.cur(), "WHEN")
	}
	var elseExpr Node
	if p.cur().Is("else") {
		p.advance()
		if elseExpr, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("end"); err != nil {
		return nil, err
	}
	return at(NewCaseBlock(subject, whens, thens, elseExpr), p.meta(start)), nil
}

// callClauses 函数调用括号内的尾部子句
type callClauses struct {
	grouping *WindowGrouping
	ordering *Ordering
	bfb      *BeforeFilterBy
	lod      *LodSpecifier
	ignore   *IgnoreDimensions
}

func (p *Parser) atClauseOrClose() bool {
	tok := p.cur()
	if tok.Type == TokenRParen || tok.Type == TokenEOF {
		return true
	}
	return tok.Type == TokenIdent && clauseKeywords[strings.ToLower(tok.Value)]
}

func (p *Parser) parseCall() (Node, error) {
	nameTok := p.advance()
	name := strings.ToLower(nameTok.Value)
	p.advance() // (

	var args []Node
	if !p.atClauseOrClose() {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur().Type != TokenComma {
				break
			}
			p.advance()
		}
	}

	clauses, err := p.parseClauses()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen, ")"); err != nil {
		return nil, err
	}
	meta := p.meta(nameTok.Pos)

	if WindowOnlyFunctions[name] || clauses.grouping != nil {
		if clauses.lod != nil || clauses.ignore != nil {
			return nil, p.errorAt(ErrorTypeSyntax, "LOD and IGNORE DIMENSIONS are not allowed in window functions", nameTok)
		}
		call := NewWindowFuncCall(name, args, clauses.grouping, clauses.ordering)
		if clauses.bfb != nil {
			call.BFB = clauses.bfb
		}
		return at(call, meta), nil
	}
	if clauses.ordering != nil {
		return nil, p.errorAt(ErrorTypeSyntax, "ORDER BY is only allowed in window functions", nameTok)
	}
	call := NewFuncCall(name, args...)
	if clauses.lod != nil {
		call.Lod = clauses.lod
	}
	if clauses.bfb != nil {
		call.BFB = clauses.bfb
	}
	if clauses.ignore != nil {
		call.Ignore = clauses.ignore
	}
	return at(call, meta), nil
}

func (p *Parser) parseClauses() (*callClauses, error) {
	c := &callClauses{}
	for {
		tok := p.cur()
		if tok.Type != TokenIdent {
			return c, nil
		}
		keyword := strings.ToLower(tok.Value)
		if !clauseKeywords[keyword] {
			return c, nil
		}
		duplicate := func(present bool) error {
			if present {
				return p.errorAt(ErrorTypeSyntax, "duplicate clause "+strings.ToUpper(keyword), tok)
			}
			return nil
		}
		p.advance()
		switch keyword {
		case "total", "within", "among":
			if err := duplicate(c.grouping != nil); err != nil {
				return nil, err
			}
			kind := GroupingTotal
			var dims []Node
			if keyword != "total" {
				kind = GroupingWithin
				if keyword == "among" {
					kind = GroupingAmong
				}
				var err error
				if dims, err = p.parseDimensionList(); err != nil {
					return nil, err
				}
			}
			c.grouping = at(NewGrouping(kind, dims...), p.meta(tok.Pos)).(*WindowGrouping)
		case "order":
			if err := duplicate(c.ordering != nil); err != nil {
				return nil, err
			}
			if err := p.expectKeyword("by"); err != nil {
				return nil, err
			}
			ordering, err := p.parseOrdering(tok.Pos)
			if err != nil {
				return nil, err
			}
			c.ordering = ordering
		case "before":
			if err := duplicate(c.bfb != nil); err != nil {
				return nil, err
			}
			if err := p.expectKeyword("filter"); err != nil {
				return nil, err
			}
			if err := p.expectKeyword("by"); err != nil {
				return nil, err
			}
			var names []string
			for {
				fieldTok, err := p.expect(TokenField, "[field]")
				if err != nil {
					return nil, err
				}
				names = append(names, fieldTok.Value)
				if p.cur().Type != TokenComma {
					break
				}
				p.advance()
			}
			c.bfb = at(NewBeforeFilterBy(names...), p.meta(tok.Pos)).(*BeforeFilterBy)
		case "fixed", "include", "exclude":
			if err := duplicate(c.lod != nil); err != nil {
				return nil, err
			}
			kind := map[string]LodKind{"fixed": LodFixed, "include": LodInclude, "exclude": LodExclude}[keyword]
			dims, err := p.parseDimensionList()
			if err != nil {
				return nil, err
			}
			c.lod = at(NewLod(kind, dims...), p.meta(tok.Pos)).(*LodSpecifier)
		case "ignore":
			if err := duplicate(c.ignore != nil); err != nil {
				return nil, err
			}
			if err := p.expectKeyword("dimensions"); err != nil {
				return nil, err
			}
			dims, err := p.parseDimensionList()
			if err != nil {
				return nil, err
			}
			c.ignore = at(&IgnoreDimensions{Dims: dims}, p.meta(tok.Pos)).(*IgnoreDimensions)
		}
	}
}

func (p *Parser) parseDimensionList() ([]Node, error) {
	if p.atClauseOrClose() {
		return nil, nil
	}
	var dims []Node
	for {
		dim, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		dims = append(dims, dim)
		if p.cur().Type != TokenComma {
			return dims, nil
		}
		p.advance()
	}
}

func (p *Parser) parseOrdering(start int) (*Ordering, error) {
	var items []*OrderItem
	for {
		itemStart := p.cur().Pos
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		desc := false
		if p.cur().Is("desc") {
			desc = true
			p.advance()
		} else if p.cur().Is("asc") {
			p.advance()
		}
		items = append(items, at(NewOrderItem(expr, desc), p.meta(itemStart)).(*OrderItem))
		if p.cur().Type != TokenComma {
			break
		}
		p.advance()
	}
	return at(NewOrdering(items...), p.meta(start)).(*Ordering), nil
}

func pick(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
