package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/biql-lang/biql/value"
)

// SyntaxError carries the offending token's source position and a
// human-readable expectation, per the error-handling design: the parser
// never returns a partial AST.
type SyntaxError struct {
	Pos     int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Message)
}

// Parser turns a BIQL token stream into a Query.
type Parser struct {
	tokens       []Token
	pos          int
	depthCounter *ExpressionDepthCounter
}

// NewParser creates a new parser over tokens.
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens, depthCounter: NewExpressionDepthCounter()}
}

// Parse tokenizes and parses a full BIQL query.
func Parse(text string) (*Query, error) {
	if err := ValidateQueryLength(text); err != nil {
		return nil, &SyntaxError{Pos: 0, Message: err.Error()}
	}
	tokens := Tokenize(text)
	if err := ValidateTokenCount(tokens); err != nil {
		return nil, &SyntaxError{Pos: 0, Message: err.Error()}
	}
	if len(tokens) > 0 && tokens[len(tokens)-1].Type == TokenError {
		bad := tokens[len(tokens)-1]
		return nil, &SyntaxError{Pos: bad.Pos, Message: fmt.Sprintf("unrecognized character %q", bad.Value)}
	}
	return NewParser(tokens).ParseQuery()
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) advance() Token {
	tok := p.current()
	p.pos++
	return tok
}

func (p *Parser) expect(t TokenType, what string) (Token, error) {
	if p.current().Type != t {
		return Token{}, p.errorf("expected %s", what)
	}
	return p.advance(), nil
}

func (p *Parser) errorf(format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: p.current().Pos, Message: fmt.Sprintf(format, args...)}
}

// ParseQuery parses the top-level query grammar, unifying the
// bare-predicate form with the fully-clausal form: when no SELECT and no
// explicit WHERE keyword are present, the remaining expression (if any)
// is parsed as the WHERE predicate directly, giving "SELECT * WHERE expr"
// semantics to a bare expr query.
func (p *Parser) ParseQuery() (*Query, error) {
	q := &Query{}

	if p.current().Type == TokenSelect {
		if err := p.parseSelectClause(q); err != nil {
			return nil, err
		}
	}

	switch {
	case p.current().Type == TokenWhere:
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		q.Where = expr
	case q.Select == nil && !p.atClauseBoundary():
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		q.Where = expr
	}

	if p.current().Type == TokenGroup {
		p.advance()
		if _, err := p.expect(TokenBy, "BY after GROUP"); err != nil {
			return nil, err
		}
		idents, err := p.parseIdentList()
		if err != nil {
			return nil, err
		}
		q.GroupBy = idents
	}

	if p.current().Type == TokenHaving {
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		q.Having = expr
	}

	if p.current().Type == TokenOrder {
		p.advance()
		if _, err := p.expect(TokenBy, "BY after ORDER"); err != nil {
			return nil, err
		}
		items, err := p.parseOrderList()
		if err != nil {
			return nil, err
		}
		q.OrderBy = items
	}

	if p.current().Type == TokenFormat {
		p.advance()
		name, err := p.acceptIdentLike()
		if err != nil {
			return nil, err
		}
		q.Format = name
	}

	if p.current().Type != TokenEOF {
		return nil, p.errorf("unexpected token %q", p.current().Value)
	}

	return q, nil
}

// atClauseBoundary reports whether the current token starts one of the
// optional trailing clauses or is EOF — used to detect "nothing left to
// parse as a bare WHERE". Any other token is handed to the expression
// parser, which reports it if it cannot start an expression.
func (p *Parser) atClauseBoundary() bool {
	switch p.current().Type {
	case TokenGroup, TokenHaving, TokenOrder, TokenFormat, TokenEOF:
		return true
	default:
		return false
	}
}

func (p *Parser) parseSelectClause(q *Query) error {
	p.advance() // SELECT
	if p.current().Type == TokenDistinct {
		q.Distinct = true
		p.advance()
	}

	item, err := p.parseItem()
	if err != nil {
		return err
	}
	q.Select = []SelectItem{item}

	for p.current().Type == TokenComma {
		p.advance()
		item, err := p.parseItem()
		if err != nil {
			return err
		}
		q.Select = append(q.Select, item)
	}
	return nil
}

func (p *Parser) parseItem() (SelectItem, error) {
	var item SelectItem

	switch {
	case p.current().Type == TokenPattern && p.current().Value == "*":
		item.Star = true
		p.advance()
	case p.current().Type == TokenIdent && isAggregateFuncName(p.current().Value) && p.peek().Type == TokenLeftParen:
		agg, err := p.parseAggregate()
		if err != nil {
			return item, err
		}
		item.Aggregate = agg
	default:
		ident, err := p.parseQualifiedIdent()
		if err != nil {
			return item, err
		}
		item.Field = ident
	}

	if p.current().Type == TokenAs {
		p.advance()
		alias, err := p.acceptIdentLike()
		if err != nil {
			return item, err
		}
		item.Alias = alias
	}

	return item, nil
}

func isAggregateFuncName(word string) bool {
	switch strings.ToUpper(word) {
	case "COUNT", "AVG", "MAX", "MIN", "SUM", "ARRAY_AGG":
		return true
	default:
		return false
	}
}

func (p *Parser) parseAggregate() (*Aggregate, error) {
	name := strings.ToUpper(p.advance().Value)
	if _, err := p.expect(TokenLeftParen, "'(' after aggregate function name"); err != nil {
		return nil, err
	}

	agg := &Aggregate{Func: AggregateFunc(name)}

	if p.current().Type == TokenDistinct {
		agg.Distinct = true
		p.advance()
	}

	if p.current().Type == TokenPattern && p.current().Value == "*" {
		agg.ArgStar = true
		p.advance()
	} else {
		ident, err := p.parseQualifiedIdent()
		if err != nil {
			return nil, err
		}
		agg.Arg = ident
	}

	if p.current().Type == TokenWhere {
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		agg.Where = expr
	}

	if _, err := p.expect(TokenRightParen, "')' to close aggregate call"); err != nil {
		return nil, err
	}

	if agg.ArgStar && agg.Func != AggCount {
		return nil, p.errorf("%s(*) is not permitted; only COUNT(*) is", agg.Func)
	}
	if agg.ArgStar && agg.Distinct {
		return nil, p.errorf("COUNT(DISTINCT *) is not permitted")
	}

	return agg, nil
}

func (p *Parser) parseIdentList() ([]QualifiedIdent, error) {
	first, err := p.parseQualifiedIdent()
	if err != nil {
		return nil, err
	}
	idents := []QualifiedIdent{first}
	for p.current().Type == TokenComma {
		p.advance()
		next, err := p.parseQualifiedIdent()
		if err != nil {
			return nil, err
		}
		idents = append(idents, next)
	}
	return idents, nil
}

func (p *Parser) parseOrderList() ([]OrderItem, error) {
	first, err := p.parseOrderItem()
	if err != nil {
		return nil, err
	}
	items := []OrderItem{first}
	for p.current().Type == TokenComma {
		p.advance()
		next, err := p.parseOrderItem()
		if err != nil {
			return nil, err
		}
		items = append(items, next)
	}
	return items, nil
}

func (p *Parser) parseOrderItem() (OrderItem, error) {
	ident, err := p.parseQualifiedIdent()
	if err != nil {
		return OrderItem{}, err
	}
	item := OrderItem{Key: ident}
	switch p.current().Type {
	case TokenAsc:
		p.advance()
	case TokenDesc:
		item.Desc = true
		p.advance()
	}
	return item, nil
}

// parseQualifiedIdent parses `ident ('.' ident)*`. The leading segment
// must be a plain identifier; trailing segments accept any keyword token
// too, so that e.g. `participants.group` parses despite GROUP being
// reserved.
func (p *Parser) parseQualifiedIdent() (QualifiedIdent, error) {
	if p.current().Type != TokenIdent {
		return nil, p.errorf("expected identifier, got %q", p.current().Value)
	}
	segs := []string{p.advance().Value}

	for p.current().Type == TokenDot {
		p.advance()
		seg, err := p.acceptIdentLike()
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return QualifiedIdent(segs), nil
}

// acceptIdentLike accepts a plain identifier or any reserved-keyword
// token as a name, returning its literal text.
func (p *Parser) acceptIdentLike() (string, error) {
	tok := p.current()
	if tok.Type == TokenIdent {
		p.advance()
		return tok.Value, nil
	}
	if _, isKeyword := keywordType(strings.ToLower(tok.Value)); isKeyword && tok.Value != "" {
		p.advance()
		return tok.Value, nil
	}
	return "", p.errorf("expected a name, got %q", tok.Value)
}

func (p *Parser) parseOr() (Expr, error) {
	if err := p.depthCounter.Enter(); err != nil {
		return nil, &SyntaxError{Pos: p.current().Pos, Message: err.Error()}
	}
	defer p.depthCounter.Exit()

	operands := []Expr{}
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	operands = append(operands, first)

	for p.current().Type == TokenOr {
		p.advance()
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		operands = append(operands, next)
	}

	if len(operands) == 1 {
		return operands[0], nil
	}
	return OrExpr{Operands: operands}, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	operands := []Expr{}
	first, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	operands = append(operands, first)

	for {
		if p.current().Type == TokenAnd {
			p.advance()
			next, err := p.parseNot()
			if err != nil {
				return nil, err
			}
			operands = append(operands, next)
			continue
		}
		if p.startsNot() {
			next, err := p.parseNot()
			if err != nil {
				return nil, err
			}
			operands = append(operands, next)
			continue
		}
		break
	}

	if len(operands) == 1 {
		return operands[0], nil
	}
	return AndExpr{Operands: operands}, nil
}

// startsNot reports whether the current token can begin a "not" rule
// production — used to detect implicit-AND adjacency.
func (p *Parser) startsNot() bool {
	switch p.current().Type {
	case TokenNot, TokenIdent, TokenLeftParen:
		return true
	default:
		return false
	}
}

func (p *Parser) parseNot() (Expr, error) {
	if err := p.depthCounter.Enter(); err != nil {
		return nil, &SyntaxError{Pos: p.current().Pos, Message: err.Error()}
	}
	defer p.depthCounter.Exit()

	if p.current().Type == TokenNot {
		p.advance()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return NotExpr{Operand: inner}, nil
	}

	if p.current().Type == TokenLeftParen {
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRightParen, "')' to close grouped expression"); err != nil {
			return nil, err
		}
		return inner, nil
	}

	return p.parseCmp()
}

func (p *Parser) parseCmp() (Expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	op, isOp := compareOpFor(p.current().Type)
	switch {
	case isOp:
		p.advance()
		right, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return CompareExpr{Left: left, Op: op, Right: right}, nil
	case p.current().Type == TokenIn:
		p.advance()
		items, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return InExpr{Left: left, List: items}, nil
	case p.current().Type == TokenLike:
		p.advance()
		pattern, err := p.parseLikePattern()
		if err != nil {
			return nil, err
		}
		return LikeExpr{Left: left, Pattern: pattern}, nil
	default:
		return ExistenceExpr{Field: left}, nil
	}
}

// parseOperand parses either an aggregate call or a plain qualified
// identifier as the left-hand side of a comparison, so that HAVING
// clauses can compare aggregate results directly (e.g. `COUNT(*) > 5`).
func (p *Parser) parseOperand() (Operand, error) {
	if p.current().Type == TokenIdent && isAggregateFuncName(p.current().Value) && p.peek().Type == TokenLeftParen {
		agg, err := p.parseAggregate()
		if err != nil {
			return Operand{}, err
		}
		return Operand{Agg: agg}, nil
	}
	ident, err := p.parseQualifiedIdent()
	if err != nil {
		return Operand{}, err
	}
	return Operand{Field: ident}, nil
}

func compareOpFor(t TokenType) (CompareOp, bool) {
	switch t {
	case TokenEqual:
		return OpEqual, true
	case TokenNotEqual:
		return OpNotEqual, true
	case TokenLess:
		return OpLess, true
	case TokenGreater:
		return OpGreater, true
	case TokenLessEqual:
		return OpLessEqual, true
	case TokenGreaterEqual:
		return OpGreaterEqual, true
	case TokenRegexMatch:
		return OpRegex, true
	default:
		return 0, false
	}
}

func (p *Parser) parseLikePattern() (string, error) {
	tok := p.current()
	switch tok.Type {
	case TokenString, TokenPattern, TokenIdent, TokenNumber:
		p.advance()
		return tok.Value, nil
	default:
		return "", p.errorf("expected a LIKE pattern, got %q", tok.Value)
	}
}

func (p *Parser) parseList() ([]ValueNode, error) {
	if _, err := p.expect(TokenLeftBrack, "'[' to start a list"); err != nil {
		return nil, err
	}
	first, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	items := []ValueNode{first}
	for p.current().Type == TokenComma {
		p.advance()
		next, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, next)
	}
	if _, err := p.expect(TokenRightBrack, "']' to close a list"); err != nil {
		return nil, err
	}
	return items, nil
}

// parseValue parses the `value` grammar rule: literal, pattern, range,
// list, regex, or NULL.
func (p *Parser) parseValue() (ValueNode, error) {
	tok := p.current()
	switch tok.Type {
	case TokenNumber:
		p.advance()
		return LiteralValue{V: numberValue(tok.Value)}, nil
	case TokenString:
		p.advance()
		return LiteralValue{V: value.Str(tok.Value)}, nil
	case TokenIdent:
		p.advance()
		return LiteralValue{V: value.Str(tok.Value)}, nil
	case TokenPattern:
		p.advance()
		return PatternValue{Pattern: tok.Value}, nil
	case TokenRegex:
		p.advance()
		return RegexValue{Pattern: tok.Value}, nil
	case TokenNull:
		p.advance()
		return NullValue{}, nil
	case TokenLeftBrack:
		return p.parseBracketValue()
	default:
		return nil, p.errorf("expected a value, got %q", tok.Value)
	}
}

// parseBracketValue parses `range := '[' number ':' number ']'` or
// `list := '[' value (',' value)* ']'`, disambiguated by a colon
// immediately following the first element.
func (p *Parser) parseBracketValue() (ValueNode, error) {
	p.advance() // '['

	first, err := p.parseValue()
	if err != nil {
		return nil, err
	}

	if p.current().Type == TokenColon {
		p.advance()
		second, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRightBrack, "']' to close a range"); err != nil {
			return nil, err
		}
		lo, ok1 := literalFloat(first)
		hi, ok2 := literalFloat(second)
		if !ok1 || !ok2 {
			return nil, p.errorf("range bounds must be numeric")
		}
		return RangeValue{Lo: lo, Hi: hi}, nil
	}

	items := []ValueNode{first}
	for p.current().Type == TokenComma {
		p.advance()
		next, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, next)
	}
	if _, err := p.expect(TokenRightBrack, "']' to close a list"); err != nil {
		return nil, err
	}
	return ListValue{Items: items}, nil
}

func literalFloat(v ValueNode) (float64, bool) {
	lit, ok := v.(LiteralValue)
	if !ok {
		return 0, false
	}
	return lit.V.AsFloat64()
}

// numberValue parses a numeric token's text into a Value, preserving
// int-vs-float distinction.
func numberValue(s string) value.Value {
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return value.Str(s)
		}
		return value.Float(f)
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return value.Str(s)
		}
		return value.Float(f)
	}
	return value.Int(i)
}
