package logik

import (
	"fmt"

	"its-hmny.dev/logik/pkg/token"
)

// ----------------------------------------------------------------------------
// Logik Parser

// This section defines the Parser for the Logik language.
//
// It's a hand-written recursive-descent parser over the token list produced by
// the scanner. The cursor protocol is an explicit peek ('cur') and 'consume'
// pair: every parsing function leaves the cursor on the first token it did not
// recognize, so the caller can always inspect 'cur' to decide how to proceed.
//
// Alongside the syntax tree the parser populates the function table: it is the
// sole producer, the table is complete (and from then on read-only) by the
// time 'Parse' returns.
type Parser struct {
	tokens []token.Token
	idx    int
	funcs  *FuncTable
}

// Initializes and returns to the caller a brand new 'Parser' struct working
// through the given token list.
func NewParser(tokens []token.Token) Parser {
	return Parser{tokens: tokens, funcs: NewFuncTable()}
}

// Returns the token under the cursor without consuming it.
func (p *Parser) cur() (token.Token, error) {
	if p.idx >= len(p.tokens) {
		return token.Token{}, fmt.Errorf("Could not get next token")
	}
	return p.tokens[p.idx], nil
}

// Moves the cursor past the token under it.
func (p *Parser) consume() { p.idx++ }

// Parser entrypoint: parses a whole program (a sequence of function
// definitions terminated by EOF) and returns the root node to execute plus
// the populated function table.
//
// The root is a call to 'main' with no arguments, ready to be handed to the
// evaluator or to the code generator.
func (p *Parser) Parse() (Node, *FuncTable, error) {
	for {
		tk, err := p.cur()
		if err != nil {
			return nil, nil, err
		}
		if tk.Kind == token.EOF {
			break
		}

		if err := p.parseFuncDef(); err != nil {
			return nil, nil, err
		}
	}

	return FuncCall{Name: "main"}, p.funcs, nil
}

// Parses 'type IDENT ( params? ) block' and records it in the function table.
// Redefining an already known name is rejected, the first definition wins.
func (p *Parser) parseFuncDef() error {
	tk, err := p.cur()
	if err != nil {
		return err
	}

	ret, err := KindFromToken(tk.Kind)
	if err != nil {
		return fmt.Errorf("Expected function return type, found %s", tk)
	}
	p.consume()

	tk, err = p.cur()
	if err != nil {
		return err
	}
	if tk.Kind != token.Identifier {
		return fmt.Errorf("Expected function name, found %s", tk)
	}
	name := tk.Text
	p.consume()

	if p.funcs.Has(name) {
		return fmt.Errorf("function '%s' already defined", name)
	}

	tk, err = p.cur()
	if err != nil {
		return err
	}
	if tk.Kind != token.ParenthesisOpen {
		return fmt.Errorf("Expected '(' after function name, found %s", tk)
	}
	p.consume()

	params, err := p.parseParams()
	if err != nil {
		return err
	}

	body, err := p.parseBlock()
	if err != nil {
		return err
	}

	p.funcs.Set(name, FuncDef{Return: ret, Name: name, Params: params, Body: body})
	return nil
}

// Parses the comma-separated '(kind, name)' parameter list up to and including
// the closing parenthesis. Zero parameters are allowed.
func (p *Parser) parseParams() ([]Param, error) {
	params := []Param{}

	tk, err := p.cur()
	if err != nil {
		return nil, err
	}
	if tk.Kind == token.ParenthesisClose {
		p.consume()
		return params, nil
	}

	for {
		tk, err := p.cur()
		if err != nil {
			return nil, err
		}
		kind, err := KindFromToken(tk.Kind)
		if err != nil {
			return nil, fmt.Errorf("Expected parameter type, found %s", tk)
		}
		p.consume()

		tk, err = p.cur()
		if err != nil {
			return nil, err
		}
		if tk.Kind != token.Identifier {
			return nil, fmt.Errorf("Expected parameter name, found %s", tk)
		}
		params = append(params, Param{Kind: kind, Name: tk.Text})
		p.consume()

		tk, err = p.cur()
		if err != nil {
			return nil, err
		}
		switch tk.Kind {
		case token.Comma:
			p.consume()
		case token.ParenthesisClose:
			p.consume()
			return params, nil
		default:
			return nil, fmt.Errorf("Expected ',' or ')', found %s", tk)
		}
	}
}

// Parses '{ command* }'.
func (p *Parser) parseBlock() (Block, error) {
	tk, err := p.cur()
	if err != nil {
		return Block{}, err
	}
	if tk.Kind != token.BracketOpen {
		return Block{}, fmt.Errorf("Expected '{', found %s", tk)
	}
	p.consume()

	block := Block{}
	for {
		tk, err := p.cur()
		if err != nil {
			return Block{}, err
		}
		if tk.Kind == token.BracketClose {
			p.consume()
			return block, nil
		}

		child, err := p.parseCommand()
		if err != nil {
			return Block{}, err
		}
		block.Children = append(block.Children, child)
	}
}

// Parses a single command: declaration, assignment, call statement, if, while,
// return or nested block. A bare ';' is a no-op, the parser just moves on to
// the next command.
func (p *Parser) parseCommand() (Node, error) {
	tk, err := p.cur()
	if err != nil {
		return nil, err
	}

	switch tk.Kind {
	case token.TypeNumber, token.TypeBool, token.TypeString:
		return p.parseDeclare()

	case token.Identifier:
		name := tk.Text
		p.consume()

		tk, err := p.cur()
		if err != nil {
			return nil, err
		}
		switch tk.Kind {
		case token.Assign:
			p.consume()
			expr, err := p.ParseCond()
			if err != nil {
				return nil, err
			}
			if err := p.expectSemiColon(); err != nil {
				return nil, err
			}
			return AssignStmt{Name: name, Expr: expr}, nil

		case token.ParenthesisOpen:
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			if err := p.expectSemiColon(); err != nil {
				return nil, err
			}
			return FuncCall{Name: name, Args: args}, nil
		}
		return nil, fmt.Errorf("Expected '=' or '(' after '%s', found %s", name, tk)

	case token.If:
		p.consume()
		cond, err := p.parseParenCond("if")
		if err != nil {
			return nil, err
		}
		then, err := p.parseCommand()
		if err != nil {
			return nil, err
		}

		tk, err := p.cur()
		if err != nil {
			return nil, err
		}
		if tk.Kind != token.Else {
			return If{Cond: cond, Then: then}, nil
		}
		p.consume()
		other, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		return If{Cond: cond, Then: then, Else: other}, nil

	case token.While:
		p.consume()
		cond, err := p.parseParenCond("while")
		if err != nil {
			return nil, err
		}
		body, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		return While{Cond: cond, Body: body}, nil

	case token.Return:
		p.consume()
		tk, err := p.cur()
		if err != nil {
			return nil, err
		}
		if tk.Kind == token.SemiColon {
			p.consume()
			return Return{}, nil
		}
		value, err := p.ParseCond()
		if err != nil {
			return nil, err
		}
		if err := p.expectSemiColon(); err != nil {
			return nil, err
		}
		return Return{Value: value}, nil

	case token.BracketOpen:
		return p.parseBlock()

	case token.SemiColon:
		p.consume()
		return p.parseCommand()
	}

	return nil, fmt.Errorf("Unknown token %s at command position", tk)
}

// Parses 'type IDENT (= cond)? ;'. An initializer is wrapped into the typed
// wrapper matching the declared kind so that evaluation asserts the value kind.
func (p *Parser) parseDeclare() (Node, error) {
	tk, err := p.cur()
	if err != nil {
		return nil, err
	}
	kind, err := KindFromToken(tk.Kind)
	if err != nil {
		return nil, err
	}
	p.consume()

	tk, err = p.cur()
	if err != nil {
		return nil, err
	}
	if tk.Kind != token.Identifier {
		return nil, fmt.Errorf("Expected identifier after type, found %s", tk)
	}
	name := tk.Text
	p.consume()

	tk, err = p.cur()
	if err != nil {
		return nil, err
	}
	if tk.Kind != token.Assign {
		if err := p.expectSemiColon(); err != nil {
			return nil, err
		}
		return Declare{Name: name, Kind: kind}, nil
	}
	p.consume()

	init, err := p.ParseCond()
	if err != nil {
		return nil, err
	}
	if err := p.expectSemiColon(); err != nil {
		return nil, err
	}

	switch kind {
	case Int:
		init = NumberExpect{Child: init}
	case Bool:
		init = BoolExpect{Child: init}
	case String:
		init = StringExpect{Child: init}
	}
	return Declare{Name: name, Kind: kind, Init: init}, nil
}

// Parses '( cond )' as used by the 'if' and 'while' headers.
func (p *Parser) parseParenCond(construct string) (Node, error) {
	tk, err := p.cur()
	if err != nil {
		return nil, err
	}
	if tk.Kind != token.ParenthesisOpen {
		return nil, fmt.Errorf("Expected '(' after '%s', found %s", construct, tk)
	}
	p.consume()

	cond, err := p.ParseCond()
	if err != nil {
		return nil, err
	}

	tk, err = p.cur()
	if err != nil {
		return nil, err
	}
	if tk.Kind != token.ParenthesisClose {
		return nil, fmt.Errorf("Expected ')', found %s", tk)
	}
	p.consume()
	return cond, nil
}

// Parses the comma-separated argument list of a call, cursor on the opening
// parenthesis. Zero arguments are allowed.
func (p *Parser) parseArgs() ([]Node, error) {
	p.consume() // The '(' the caller already inspected

	args := []Node{}
	tk, err := p.cur()
	if err != nil {
		return nil, err
	}
	if tk.Kind == token.ParenthesisClose {
		p.consume()
		return args, nil
	}

	for {
		arg, err := p.ParseCond()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		tk, err := p.cur()
		if err != nil {
			return nil, err
		}
		switch tk.Kind {
		case token.Comma:
			p.consume()
		case token.ParenthesisClose:
			p.consume()
			return args, nil
		default:
			return nil, fmt.Errorf("Expected ',' or ')', found %s", tk)
		}
	}
}

func (p *Parser) expectSemiColon() error {
	tk, err := p.cur()
	if err != nil {
		return err
	}
	if tk.Kind != token.SemiColon {
		return fmt.Errorf("Expected ';', found %s", tk)
	}
	p.consume()
	return nil
}

// ----------------------------------------------------------------------------
// Expression grammar

// The precedence ladder: 'cond' sits above 'expr' (additive) which sits above
// 'term' (multiplicative) which sits above 'factor' (unary and literals).
// Conditional operators are parsed flat and left-associative at the outermost
// rank, they do not mix with the arithmetic precedence levels.

// Parses 'expr (CONDOP expr)*', the entrypoint for every expression position.
func (p *Parser) ParseCond() (Node, error) {
	left, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	for {
		tk, err := p.cur()
		if err != nil {
			return nil, err
		}
		if tk.Kind != token.Condition {
			return left, nil
		}
		p.consume()

		right, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		left = Cond{Op: tk.Cond, Left: left, Right: right}
	}
}

// Parses 'term ((+|-) term)*'.
func (p *Parser) parseExpr() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for {
		tk, err := p.cur()
		if err != nil {
			return nil, err
		}
		if tk.Kind != token.Operator || (tk.Op != token.Add && tk.Op != token.Sub) {
			return left, nil
		}
		p.consume()

		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: tk.Op, Left: left, Right: right}
	}
}

// Parses 'factor ((*|/) factor)*'.
func (p *Parser) parseTerm() (Node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}

	for {
		tk, err := p.cur()
		if err != nil {
			return nil, err
		}
		if tk.Kind != token.Operator || (tk.Op != token.Mul && tk.Op != token.Div) {
			return left, nil
		}
		p.consume()

		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: tk.Op, Left: left, Right: right}
	}
}

// Parses a single factor: literal, variable reference, call, unary operator
// or parenthesized sub-expression.
func (p *Parser) parseFactor() (Node, error) {
	tk, err := p.cur()
	if err != nil {
		return nil, err
	}

	switch tk.Kind {
	case token.Number:
		p.consume()
		return NumberLiteral{Value: tk.Value}, nil

	case token.String:
		p.consume()
		return StringLiteral{Value: tk.Text}, nil

	case token.True:
		p.consume()
		return BoolLiteral{Value: true}, nil

	case token.False:
		p.consume()
		return BoolLiteral{Value: false}, nil

	case token.Identifier:
		p.consume()
		next, err := p.cur()
		if err != nil {
			return nil, err
		}
		if next.Kind == token.ParenthesisOpen {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			return FuncCall{Name: tk.Text, Args: args}, nil
		}
		return VarRef{Name: tk.Text}, nil

	case token.Operator:
		var kind UnaryKind
		switch tk.Op {
		case token.Add:
			kind = Pos
		case token.Sub:
			kind = Neg
		case token.Not:
			kind = Not
		default:
			return nil, fmt.Errorf("Expected '+' or '-' or '!' found '%s'", tk.Op)
		}
		p.consume()

		child, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return Unary{Kind: kind, Child: child}, nil

	case token.ParenthesisOpen:
		p.consume()
		inner, err := p.ParseCond()
		if err != nil {
			return nil, err
		}

		tk, err := p.cur()
		if err != nil {
			return nil, err
		}
		if tk.Kind != token.ParenthesisClose {
			return nil, fmt.Errorf("Expected ')', found %s", tk)
		}
		p.consume()
		return inner, nil
	}

	return nil, fmt.Errorf("Expected number, variable, operator or '(', found %s", tk)
}
