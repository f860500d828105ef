package parser

import (
	"fmt"
	"strconv"

	"github.com/toyc/toyc/internal/ast"
	"github.com/toyc/toyc/internal/lexer"
)

type Parser struct {
	lexer   *lexer.Lexer
	lexemes []lexer.Lexeme
	pos     int

	ctx    *ast.Context
	locals *ast.LocalTable
}

func New(lex *lexer.Lexer) *Parser {
	return &Parser{lexer: lex, ctx: ast.NewContext()}
}

// Parse is a shortcut for New(lex).ParseProgram().
func Parse(lex *lexer.Lexer) (*ast.Context, error) {
	return New(lex).ParseProgram()
}

func (p *Parser) fill(n int) error {
	for len(p.lexemes) < p.pos+n {
		lex, err := p.lexer.Next()
		if err != nil {
			return err
		}
		p.lexemes = append(p.lexemes, lex)
	}
	return nil
}

func (p *Parser) consume() (lexer.Lexeme, error) {
	if err := p.fill(1); err != nil {
		return lexer.Lexeme{}, err
	}
	lex := p.lexemes[p.pos]
	p.pos++
	return lex, nil
}

func (p *Parser) peek() (lexer.Lexeme, error) {
	return p.peekAt(0)
}

func (p *Parser) peekAt(offset int) (lexer.Lexeme, error) {
	if err := p.fill(offset + 1); err != nil {
		return lexer.Lexeme{}, err
	}
	return p.lexemes[p.pos+offset], nil
}

func (p *Parser) expectPunctuation(s string) (lexer.Lexeme, error) {
	lex, err := p.consume()
	if err != nil {
		return lex, err
	}
	if !lex.IsPunctuation(s) {
		return lex, fmt.Errorf("%s: expected '%s', got %v", lex.Loc, s, lex)
	}
	return lex, nil
}

func (p *Parser) expectIdent(what string) (lexer.Lexeme, error) {
	lex, err := p.consume()
	if err != nil {
		return lex, err
	}
	if lex.Type != lexer.LEX_IDENT {
		return lex, fmt.Errorf("%s: expected %s, got %v", lex.Loc, what, lex)
	}
	return lex, nil
}

// ParseProgram parses a sequence of function definitions.
func (p *Parser) ParseProgram() (*ast.Context, error) {
	functions := []*ast.Node{}
	for {
		lex, err := p.peek()
		if err != nil {
			return nil, err
		}
		if lex.Type == lexer.LEX_EOF {
			break
		}
		fn, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		functions = append(functions, fn)
	}
	if len(functions) == 0 {
		return nil, fmt.Errorf("program has no functions")
	}
	p.ctx.Root = ast.Spine(ast.KindSeparator, functions...)
	return p.ctx, nil
}

func (p *Parser) parseFunction() (*ast.Node, error) {
	lex, err := p.consume()
	if err != nil {
		return nil, err
	}
	if !lex.IsKeyword("func") {
		return nil, fmt.Errorf("%s: expected 'func', got %v", lex.Loc, lex)
	}
	loc := lex.Loc

	nameLex, err := p.expectIdent("function name")
	if err != nil {
		return nil, err
	}
	// The function name is interned before its parameters and body.
	name := p.ctx.Names.Intern(nameLex.Str)

	p.locals = ast.NewLocalTable()
	p.ctx.Locals = append(p.ctx.Locals, p.locals)

	if _, err := p.expectPunctuation("("); err != nil {
		return nil, err
	}
	params := []*ast.Node{}
	lex, err = p.peek()
	if err != nil {
		return nil, err
	}
	if !lex.IsPunctuation(")") {
		for {
			paramLex, err := p.expectIdent("parameter name")
			if err != nil {
				return nil, err
			}
			param := ast.NewIdentifier(p.ctx.Names.Intern(paramLex.Str))
			param.Loc = paramLex.Loc
			params = append(params, param)
			p.locals.Slots++

			lex, err = p.consume()
			if err != nil {
				return nil, err
			}
			if lex.IsPunctuation(")") {
				break
			}
			if !lex.IsPunctuation(",") {
				return nil, fmt.Errorf("%s: expected ',' or ')', got %v", lex.Loc, lex)
			}
		}
	} else if _, err := p.consume(); err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return &ast.Node{
		Kind:  ast.KindFunction,
		Name:  name,
		Left:  ast.Spine(ast.KindComma, params...),
		Right: body,
		Loc:   loc,
	}, nil
}

// parseBlock parses "{" statement* "}" into a separator spine (nil when empty).
func (p *Parser) parseBlock() (*ast.Node, error) {
	if _, err := p.expectPunctuation("{"); err != nil {
		return nil, err
	}
	statements := []*ast.Node{}
	for {
		lex, err := p.peek()
		if err != nil {
			return nil, err
		}
		if lex.IsPunctuation("}") {
			break
		}
		if lex.Type == lexer.LEX_EOF {
			return nil, fmt.Errorf("unexpected end of file, expected '}'")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}
	p.consume()
	return ast.Spine(ast.KindSeparator, statements...), nil
}

func (p *Parser) parseStatement() (*ast.Node, error) {
	lex, err := p.peek()
	if err != nil {
		return nil, err
	}

	var stmt *ast.Node
	switch {
	case lex.IsKeyword("var"):
		stmt, err = p.parseVariableDeclaration()
	case lex.IsKeyword("if"), lex.IsKeyword("while"):
		// Compound statements are not followed by ';'.
		return p.parseConditional()
	case lex.IsKeyword("return"):
		p.consume()
		stmt = &ast.Node{Kind: ast.KindReturn, Loc: lex.Loc}
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		if !next.IsPunctuation(";") {
			stmt.Left, err = p.parseExpression()
		}
	case lex.IsKeyword("out"):
		p.consume()
		stmt = &ast.Node{Kind: ast.KindOut, Loc: lex.Loc}
		stmt.Left, err = p.parseExpression()
	case lex.IsKeyword("break"):
		p.consume()
		stmt = &ast.Node{Kind: ast.KindBreak, Loc: lex.Loc}
	case lex.IsKeyword("continue"):
		p.consume()
		stmt = &ast.Node{Kind: ast.KindContinue, Loc: lex.Loc}
	case lex.IsKeyword("abort"):
		p.consume()
		stmt = &ast.Node{Kind: ast.KindAbort, Loc: lex.Loc}
	case lex.Type == lexer.LEX_IDENT:
		next, err := p.peekAt(1)
		if err != nil {
			return nil, err
		}
		if next.IsOperator("=") {
			stmt, err = p.parseAssignment()
		} else if next.IsPunctuation("(") {
			stmt, err = p.parseCall()
		} else {
			return nil, fmt.Errorf("%s: expected '=' or '(' after %s, got %v", next.Loc, lex.Str, next)
		}
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%s: unknown statement: %v", lex.Loc, lex)
	}
	if err != nil {
		return nil, err
	}

	if _, err := p.expectPunctuation(";"); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseVariableDeclaration() (*ast.Node, error) {
	lex, _ := p.consume()
	nameLex, err := p.expectIdent("variable name")
	if err != nil {
		return nil, err
	}
	decl := &ast.Node{Kind: ast.KindVarDecl, Name: p.ctx.Names.Intern(nameLex.Str), Loc: lex.Loc}
	p.locals.Slots++

	next, err := p.peek()
	if err != nil {
		return nil, err
	}
	if next.IsOperator("=") {
		p.consume()
		decl.Left, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	return decl, nil
}

func (p *Parser) parseAssignment() (*ast.Node, error) {
	nameLex, _ := p.consume()
	eq, _ := p.consume()
	target := ast.NewIdentifier(p.ctx.Names.Intern(nameLex.Str))
	target.Loc = nameLex.Loc
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.KindAssign, Left: target, Right: value, Loc: eq.Loc}, nil
}

func (p *Parser) parseConditional() (*ast.Node, error) {
	lex, _ := p.consume()
	kind := ast.KindIf
	if lex.IsKeyword("while") {
		kind = ast.KindWhile
	}
	if _, err := p.expectPunctuation("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunctuation(")"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.Node{Kind: kind, Left: cond, Right: body, Loc: lex.Loc}, nil
}

func (p *Parser) parseCall() (*ast.Node, error) {
	nameLex, _ := p.consume()
	if _, err := p.expectPunctuation("("); err != nil {
		return nil, err
	}
	args := []*ast.Node{}
	lex, err := p.peek()
	if err != nil {
		return nil, err
	}
	if lex.IsPunctuation(")") {
		p.consume()
	} else {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			lex, err := p.consume()
			if err != nil {
				return nil, err
			}
			if lex.IsPunctuation(")") {
				break
			}
			if !lex.IsPunctuation(",") {
				return nil, fmt.Errorf("%s: expected ',' or ')', got %v", lex.Loc, lex)
			}
		}
	}
	return &ast.Node{
		Kind: ast.KindCall,
		Name: p.ctx.Names.Intern(nameLex.Str),
		Left: ast.Spine(ast.KindComma, args...),
		Loc:  nameLex.Loc,
	}, nil
}

var binaryLevels = [][]string{
	{"||"},
	{"&&"},
	{"<", ">", "<=", ">=", "==", "!="},
	{"+", "-"},
	{"*", "/"},
}

func (p *Parser) parseExpression() (*ast.Node, error) {
	return p.parseBinary(0)
}

// parseBinary parses left-associative binary operators of the given precedence level.
// Relational operators do not chain.
func (p *Parser) parseBinary(level int) (*ast.Node, error) {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}
	left, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		lex, err := p.peek()
		if err != nil {
			return nil, err
		}
		op, ok := matchOperator(lex, binaryLevels[level])
		if !ok {
			return left, nil
		}
		p.consume()
		right, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		left = ast.NewOperator(op, left, right)
		left.Loc = lex.Loc
		if op.IsRelational() {
			return left, nil
		}
	}
}

func matchOperator(lex lexer.Lexeme, ops []string) (ast.Operator, bool) {
	if lex.Type != lexer.LEX_OPERATOR {
		return ast.OpNone, false
	}
	for _, s := range ops {
		if lex.Str == s {
			return ast.OperatorFromString(s)
		}
	}
	return ast.OpNone, false
}

func (p *Parser) parseUnary() (*ast.Node, error) {
	lex, err := p.peek()
	if err != nil {
		return nil, err
	}
	if lex.IsOperator("!") || lex.IsOperator("-") {
		p.consume()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		var node *ast.Node
		if lex.Str == "!" {
			node = ast.NewOperator(ast.OpNot, operand, nil)
		} else {
			node = ast.NewOperator(ast.OpSub, ast.NewConstant(0), operand)
		}
		node.Loc = lex.Loc
		return node, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (*ast.Node, error) {
	lex, err := p.peek()
	if err != nil {
		return nil, err
	}

	switch {
	case lex.Type == lexer.LEX_NUMBER:
		p.consume()
		value, err := strconv.ParseInt(lex.Str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid integer literal %s: %w", lex.Loc, lex.Str, err)
		}
		node := ast.NewConstant(value)
		node.Loc = lex.Loc
		return node, nil
	case lex.Type == lexer.LEX_IDENT:
		next, err := p.peekAt(1)
		if err != nil {
			return nil, err
		}
		if next.IsPunctuation("(") {
			return p.parseCall()
		}
		p.consume()
		node := ast.NewIdentifier(p.ctx.Names.Intern(lex.Str))
		node.Loc = lex.Loc
		return node, nil
	case lex.IsKeyword("in"):
		p.consume()
		return &ast.Node{Kind: ast.KindIn, Loc: lex.Loc}, nil
	case lex.IsKeyword("sin"), lex.IsKeyword("cos"), lex.IsKeyword("floor"), lex.IsKeyword("sqrt"), lex.IsKeyword("diff"):
		p.consume()
		op, _ := ast.OperatorFromString(lex.Str)
		if _, err := p.expectPunctuation("("); err != nil {
			return nil, err
		}
		operand, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunctuation(")"); err != nil {
			return nil, err
		}
		node := ast.NewOperator(op, operand, nil)
		node.Loc = lex.Loc
		return node, nil
	case lex.IsPunctuation("("):
		p.consume()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunctuation(")"); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return nil, fmt.Errorf("%s: unexpected %v in expression", lex.Loc, lex)
}
