// Package expr parses the restricted algebraic grammar used for constraint
// and objective expressions, e.g. "45*x1 + 50*x2 + 55*x3" or
// "x1 + x2 + x3 >= 800". The grammar admits identifiers, numeric literals,
// unary minus, addition, subtraction, multiplication and parentheses, with a
// single comparison operator at the top level of a constraint. Anything a
// linear solver cannot consume (such as a product of two variables) is
// rejected at linearization time, not silently accepted.
package expr

import "fmt"

// Node is an AST node of a parsed expression.
type Node interface {
	node()
}

// Num is a numeric literal.
type Num struct {
	Value float64
}

// Var is a variable reference.
type Var struct {
	Name string
}

// Neg is unary negation.
type Neg struct {
	Operand Node
}

// BinOp is the operator of a binary node.
type BinOp byte

const (
	OpAdd BinOp = '+'
	OpSub BinOp = '-'
	OpMul BinOp = '*'
)

// Bin is a binary operation.
type Bin struct {
	Op    BinOp
	Left  Node
	Right Node
}

func (Num) node() {}
func (Var) node() {}
func (Neg) node() {}
func (Bin) node() {}

// Relation is the comparison operator of a constraint.
type Relation string

const (
	LE Relation = "<="
	GE Relation = ">="
	EQ Relation = "="
)

// Comparison is a parsed constraint: LHS Rel RHS.
type Comparison struct {
	LHS Node
	Rel Relation
	RHS Node
}

type parser struct {
	input string
	toks  []token
	pos   int
}

func (p *parser) peek() token  { return p.toks[p.pos] }
func (p *parser) next() token  { t := p.toks[p.pos]; p.pos++; return t }
func (p *parser) errorf(t token, format string, args ...any) error {
	return &ParseError{Expr: p.input, Pos: t.pos, Message: fmt.Sprintf(format, args...)}
}

// Parse parses a bare arithmetic expression (no comparison operator).
func Parse(input string) (Node, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, toks: toks}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %q after expression", t.text)
	}
	return n, nil
}

// ParseConstraint parses a constraint of the form "expr <= expr",
// "expr >= expr" or "expr = expr".
func ParseConstraint(input string) (*Comparison, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, toks: toks}
	lhs, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	var rel Relation
	switch t := p.next(); t.kind {
	case tokLE:
		rel = LE
	case tokGE:
		rel = GE
	case tokEQ:
		rel = EQ
	default:
		return nil, p.errorf(t, "expected comparison operator, got %q", t.text)
	}
	rhs, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %q after constraint", t.text)
	}
	return &Comparison{LHS: lhs, Rel: rel, RHS: rhs}, nil
}

// expr := term (('+'|'-') term)*
func (p *parser) parseExpr() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokPlus:
			p.next()
			right, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			left = Bin{Op: OpAdd, Left: left, Right: right}
		case tokMinus:
			p.next()
			right, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			left = Bin{Op: OpSub, Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

// term := factor ('*' factor)*
func (p *parser) parseTerm() (Node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokStar {
		p.next()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = Bin{Op: OpMul, Left: left, Right: right}
	}
	return left, nil
}

// factor := number | ident | '-' factor | '(' expr ')'
func (p *parser) parseFactor() (Node, error) {
	switch t := p.next(); t.kind {
	case tokNumber:
		return Num{Value: t.value}, nil
	case tokIdent:
		return Var{Name: t.text}, nil
	case tokMinus:
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return Neg{Operand: operand}, nil
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.kind != tokRParen {
			return nil, p.errorf(t, "expected closing parenthesis, got %q", t.text)
		}
		return inner, nil
	default:
		return nil, p.errorf(t, "expected number, identifier or parenthesized expression, got %q", t.text)
	}
}

// Identifiers collects every variable name referenced by the node, in first
// appearance order.
func Identifiers(n Node) []string {
	var names []string
	seen := make(map[string]bool)
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case Var:
			if !seen[v.Name] {
				seen[v.Name] = true
				names = append(names, v.Name)
			}
		case Neg:
			walk(v.Operand)
		case Bin:
			walk(v.Left)
			walk(v.Right)
		}
	}
	walk(n)
	return names
}
