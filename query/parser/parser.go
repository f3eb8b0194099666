// Package parser implements a recursive-descent, precedence-climbing
// GQL parser over query/lexer's token stream, producing query/ast
// nodes. A recursive-descent Parser with an explicit token cursor and
// precedence climbing for expressions in place of a combinator
// style.
package parser

import (
	"strconv"

	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/query"
	"kotobadb.dev/kotobadb/query/ast"
	"kotobadb.dev/kotobadb/query/lexer"
)

// Parser walks a fully tokenized GQL source string.
type Parser struct {
	toks []lexer.Token
	pos  int
}

func New(src string) *Parser {
	return &Parser{toks: lexer.Tokenize(src)}
}

// Parse tokenizes and parses src into a full program (one or more
// statements separated by ';').
func Parse(src string) (*ast.Program, error) {
	return New(src).ParseProgram()
}

// ParseStatement parses a single statement, erroring if src contains
// more than one (ignoring a single trailing ';').
func ParseStatement(src string) (ast.Statement, error) {
	prog, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if len(prog.Statements) != 1 {
		return nil, query.NewParseError(1, 1, "expected exactly one statement, got %d", len(prog.Statements))
	}
	return prog.Statements[0], nil
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) peekAt(n int) lexer.Token {
	i := p.pos + n
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}
func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) errf(format string, args ...interface{}) error {
	t := p.cur()
	return query.NewParseError(t.Line, t.Col, format, args...)
}

func (p *Parser) expect(k lexer.Kind) (lexer.Token, error) {
	if p.cur().Kind != k {
		return lexer.Token{}, p.errf("unexpected token %q", p.cur().Lit)
	}
	return p.advance(), nil
}

func (p *Parser) at(k lexer.Kind) bool { return p.cur().Kind == k }

func (p *Parser) pos_() ast.Position {
	t := p.cur()
	return ast.Position{Line: t.Line, Col: t.Col}
}

// ParseProgram parses a ';'-separated sequence of statements.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	var prog ast.Program
	for !p.at(lexer.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
		for p.at(lexer.SEMICOLON) {
			p.advance()
		}
	}
	return &prog, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch p.cur().Kind {
	case lexer.CREATE:
		return p.parseCreate()
	case lexer.DROP:
		return p.parseDrop()
	case lexer.INSERT:
		return p.parseInsert()
	case lexer.MATCH, lexer.LOCAL:
		return p.parseQuery()
	default:
		return nil, p.errf("unexpected token %q at start of statement", p.cur().Lit)
	}
}

// --- DDL ---

func (p *Parser) parseCreate() (ast.Statement, error) {
	start := p.pos_()
	p.advance() // CREATE
	switch p.cur().Kind {
	case lexer.GRAPH:
		p.advance()
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		return &ast.CreateGraph{Position: start, Name: name.Lit}, nil
	case lexer.INDEX:
		p.advance()
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.ON); err != nil {
			return nil, err
		}
		label, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.LPAREN); err != nil {
			return nil, err
		}
		prop, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return &ast.CreateIndex{Position: start, Name: name.Lit, Label: label.Lit, Property: prop.Lit}, nil
	default:
		return nil, p.errf("expected GRAPH or INDEX after CREATE")
	}
}

func (p *Parser) parseDrop() (ast.Statement, error) {
	start := p.pos_()
	p.advance() // DROP
	switch p.cur().Kind {
	case lexer.GRAPH:
		p.advance()
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		return &ast.DropGraph{Position: start, Name: name.Lit}, nil
	case lexer.INDEX:
		p.advance()
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		return &ast.DropIndex{Position: start, Name: name.Lit}, nil
	default:
		return nil, p.errf("expected GRAPH or INDEX after DROP")
	}
}

func (p *Parser) parseInsert() (ast.Statement, error) {
	start := p.pos_()
	p.advance() // INSERT
	stmt := &ast.InsertStatement{Position: start}
	for {
		pattern, err := p.parsePathPattern()
		if err != nil {
			return nil, err
		}
		stmt.Elements = append(stmt.Elements, pattern)
		if p.at(lexer.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return stmt, nil
}

// --- Query ---

func (p *Parser) parseQuery() (ast.Statement, error) {
	start := p.pos_()
	q := &ast.Query{Position: start}

	for p.at(lexer.LOCAL) {
		p.advance()
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		// The lexer cannot distinguish assignment from equality; a
		// LOCAL binding's '=' arrives as either kind.
		if !p.at(lexer.ASSIGN) && !p.at(lexer.EQ) {
			return nil, p.errf("expected '=' after LOCAL %s", name.Lit)
		}
		p.advance()
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		q.Locals = append(q.Locals, ast.LocalBinding{Name: name.Lit, Value: val})
	}

	if _, err := p.expect(lexer.MATCH); err != nil {
		return nil, err
	}
	pattern, err := p.parsePathPattern()
	if err != nil {
		return nil, err
	}
	q.Match = &ast.MatchClause{Pattern: pattern}

	if p.at(lexer.WHERE) {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		q.Where = where
	}

	if _, err := p.expect(lexer.RETURN); err != nil {
		return nil, err
	}
	ret, err := p.parseReturn()
	if err != nil {
		return nil, err
	}
	q.Return = ret

	if p.at(lexer.GROUP) {
		p.advance()
		if _, err := p.expect(lexer.BY); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			q.GroupBy = append(q.GroupBy, e)
			if p.at(lexer.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}

	if p.at(lexer.ORDER) {
		p.advance()
		if _, err := p.expect(lexer.BY); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			item := ast.OrderByItem{Expr: e}
			switch p.cur().Kind {
			case lexer.ASC:
				p.advance()
			case lexer.DESC:
				item.Desc = true
				p.advance()
			}
			q.OrderBy = append(q.OrderBy, item)
			if p.at(lexer.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}

	if p.at(lexer.LIMIT) {
		p.advance()
		n, err := p.expect(lexer.INT)
		if err != nil {
			return nil, err
		}
		v, _ := strconv.ParseInt(n.Lit, 10, 64)
		q.Limit = &v
	}

	return q, nil
}

func (p *Parser) parseReturn() (*ast.ReturnClause, error) {
	ret := &ast.ReturnClause{}
	if p.at(lexer.DISTINCT) {
		ret.Distinct = true
		p.advance()
	}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		item := ast.ReturnItem{Expr: e}
		if p.at(lexer.AS) {
			p.advance()
			alias, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			item.Alias = alias.Lit
		}
		ret.Items = append(ret.Items, item)
		if p.at(lexer.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return ret, nil
}

// --- Patterns ---

// parsePathPattern parses `[path =] (n1)-[e1]-(n2)-[e2]->(n3)...`.
func (p *Parser) parsePathPattern() (*ast.PathPattern, error) {
	pattern := &ast.PathPattern{}

	if p.at(lexer.IDENT) && (p.peekAt(1).Kind == lexer.ASSIGN || p.peekAt(1).Kind == lexer.EQ) {
		pattern.Variable = p.advance().Lit
		p.advance() // '='
	}

	node, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}
	pattern.Nodes = append(pattern.Nodes, node)

	for p.at(lexer.DASH) || p.at(lexer.LT) {
		edge, err := p.parseEdgeStep()
		if err != nil {
			return nil, err
		}
		n, err := p.parseNodePattern()
		if err != nil {
			return nil, err
		}
		pattern.Edges = append(pattern.Edges, edge)
		pattern.Nodes = append(pattern.Nodes, n)
	}

	return pattern, nil
}

func (p *Parser) parseNodePattern() (*ast.NodePattern, error) {
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	n := &ast.NodePattern{}
	if p.at(lexer.IDENT) {
		n.Variable = p.advance().Lit
	}
	for p.at(lexer.COLON) {
		p.advance()
		label, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		n.Labels = append(n.Labels, label.Lit)
	}
	if p.at(lexer.LBRACE) {
		props, err := p.parsePropertyMap()
		if err != nil {
			return nil, err
		}
		n.Properties = props
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	return n, nil
}

// parseEdgeStep parses one of: '-[...]-' , '-[...]->' , '<-[...]-'.
func (p *Parser) parseEdgeStep() (*ast.EdgePattern, error) {
	e := &ast.EdgePattern{Direction: ast.DirEither}

	leftArrow := false
	if p.at(lexer.LT) {
		p.advance()
		leftArrow = true
	}
	if _, err := p.expect(lexer.DASH); err != nil {
		return nil, err
	}

	if p.at(lexer.LBRACKET) {
		p.advance()
		if p.at(lexer.IDENT) {
			e.Variable = p.advance().Lit
		}
		for p.at(lexer.COLON) {
			p.advance()
			label, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			e.Labels = append(e.Labels, label.Lit)
		}
		if p.at(lexer.STAR) {
			p.advance()
			e.VariableLength = true
			min, err := p.expect(lexer.INT)
			if err != nil {
				return nil, err
			}
			minN, _ := strconv.Atoi(min.Lit)
			e.MinHops = minN
			e.MaxHops = minN
			if p.at(lexer.DOTDOT) {
				p.advance()
				max, err := p.expect(lexer.INT)
				if err != nil {
					return nil, err
				}
				maxN, _ := strconv.Atoi(max.Lit)
				e.MaxHops = maxN
			}
		}
		if p.at(lexer.LBRACE) {
			props, err := p.parsePropertyMap()
			if err != nil {
				return nil, err
			}
			e.Properties = props
		}
		if _, err := p.expect(lexer.RBRACKET); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(lexer.DASH); err != nil {
		return nil, err
	}
	rightArrow := false
	if p.at(lexer.GT) {
		p.advance()
		rightArrow = true
	}

	switch {
	case leftArrow && !rightArrow:
		e.Direction = ast.DirIn
	case rightArrow && !leftArrow:
		e.Direction = ast.DirOut
	default:
		e.Direction = ast.DirEither
	}
	return e, nil
}

func (p *Parser) parsePropertyMap() (map[string]ast.Expr, error) {
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	props := make(map[string]ast.Expr)
	for !p.at(lexer.RBRACE) {
		key, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.COLON); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		props[key.Lit] = val
		if p.at(lexer.COMMA) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return props, nil
}

// --- Expressions: precedence-climbing ---
//
// Precedence, low to high: OR, AND, NOT, comparison/IN, additive,
// multiplicative, unary minus, primary/postfix.

func (p *Parser) parseExpr() (ast.Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.OR) {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.AND) {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (ast.Expr, error) {
	if p.at(lexer.NOT) {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.OpNot, Operand: operand}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[lexer.Kind]ast.BinaryOp{
	lexer.EQ:  ast.OpEq,
	lexer.NEQ: ast.OpNeq,
	lexer.LT:  ast.OpLt,
	lexer.LTE: ast.OpLte,
	lexer.GT:  ast.OpGt,
	lexer.GTE: ast.OpGte,
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if op, ok := comparisonOps[p.cur().Kind]; ok {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpr{Op: op, Left: left, Right: right}, nil
	}
	if p.at(lexer.IN) {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpr{Op: ast.OpIn, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.PLUS) || p.at(lexer.DASH) {
		op := ast.OpAdd
		if p.at(lexer.DASH) {
			op = ast.OpSub
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.STAR) || p.at(lexer.SLASH) || p.at(lexer.PERCENT) {
		var op ast.BinaryOp
		switch p.advance().Kind {
		case lexer.STAR:
			op = ast.OpMul
		case lexer.SLASH:
			op = ast.OpDiv
		case lexer.PERCENT:
			op = ast.OpMod
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.at(lexer.DASH) {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.OpNeg, Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.DOT) {
		p.advance()
		prop, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		expr = &ast.PropertyAccess{Target: expr, Property: prop.Lit}
	}
	return expr, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	t := p.cur()
	switch t.Kind {
	case lexer.INT:
		p.advance()
		n, _ := strconv.ParseInt(t.Lit, 10, 64)
		return &ast.Literal{Value: graph.IntValue(n)}, nil
	case lexer.FLOAT:
		p.advance()
		f, _ := strconv.ParseFloat(t.Lit, 64)
		return &ast.Literal{Value: graph.FloatValue(f)}, nil
	case lexer.STRING:
		p.advance()
		return &ast.Literal{Value: graph.StringValue(t.Lit)}, nil
	case lexer.TRUE:
		p.advance()
		return &ast.Literal{Value: graph.BoolValue(true)}, nil
	case lexer.FALSE:
		p.advance()
		return &ast.Literal{Value: graph.BoolValue(false)}, nil
	case lexer.NULL:
		p.advance()
		return &ast.Literal{Value: graph.Null()}, nil
	case lexer.PARAM:
		p.advance()
		return &ast.Param{Name: t.Lit}, nil
	case lexer.LBRACKET:
		return p.parseListExpr()
	case lexer.LPAREN:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	case lexer.STAR:
		// Only valid as a count(*) argument; handled by caller.
		p.advance()
		return &ast.Ident{Name: "*"}, nil
	case lexer.IDENT:
		name := p.advance().Lit
		if p.at(lexer.LPAREN) {
			return p.parseFuncCallArgs(name)
		}
		return &ast.Ident{Name: name}, nil
	default:
		return nil, p.errf("unexpected token %q in expression", t.Lit)
	}
}

func (p *Parser) parseFuncCallArgs(name string) (ast.Expr, error) {
	p.advance() // '('
	call := &ast.FuncCall{Name: name}
	if p.at(lexer.DISTINCT) {
		call.Distinct = true
		p.advance()
	}
	if p.at(lexer.STAR) {
		p.advance()
		call.Star = true
	} else {
		for !p.at(lexer.RPAREN) {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if p.at(lexer.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *Parser) parseListExpr() (ast.Expr, error) {
	p.advance() // '['
	list := &ast.ListExpr{}
	for !p.at(lexer.RBRACKET) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		list.Items = append(list.Items, e)
		if p.at(lexer.COMMA) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RBRACKET); err != nil {
		return nil, err
	}
	return list, nil
}
