package expr

// Context is how an Expr reaches into the workflow state it is being
// evaluated against, per §9: dotted field access into the task context,
// has(path) presence checks, exists(step_id) completion checks, and
// result(step_id).field reads of a prior step's output.
type Context interface {
	// Field resolves a dotted path (e.g. "annotations.count") against the
	// task context. ok is false if any segment of the path is absent.
	Field(path string) (value interface{}, ok bool)
	// StepExists reports whether the named step has produced a result yet.
	StepExists(stepID string) bool
	// StepResult returns the named step's result field, analogous to
	// Field but scoped to one step's output.
	StepResult(stepID, field string) (value interface{}, ok bool)
}

// node is implemented by every AST node the parser produces.
type node interface {
	eval(ctx Context) (interface{}, error)
}

// Expr is a parsed, reusable condition. Expressions are immutable once
// parsed and safe for concurrent evaluation against different contexts.
type Expr struct {
	root node
	src  string
}

// String returns the original source text the expression was parsed from.
func (e *Expr) String() string { return e.src }

// Eval evaluates the expression against ctx, returning its value. Boolean
// results are what transition/Conditional evaluation consumes; EvalBool is
// a convenience for that common case.
func (e *Expr) Eval(ctx Context) (interface{}, error) {
	return e.root.eval(ctx)
}

// EvalBool evaluates the expression and requires a boolean result.
func (e *Expr) EvalBool(ctx Context) (bool, error) {
	v, err := e.Eval(ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &ConditionError{Kind: ErrType, Detail: "expression did not evaluate to a boolean"}
	}
	return b, nil
}

type literalNode struct{ value interface{} }

func (n *literalNode) eval(Context) (interface{}, error) { return n.value, nil }

type fieldNode struct{ path string }

func (n *fieldNode) eval(ctx Context) (interface{}, error) {
	v, ok := ctx.Field(n.path)
	if !ok {
		return nil, &ConditionError{Kind: ErrUnknownField, Detail: "no such field: " + n.path}
	}
	return v, nil
}

type hasNode struct{ path string }

func (n *hasNode) eval(ctx Context) (interface{}, error) {
	_, ok := ctx.Field(n.path)
	return ok, nil
}

type existsNode struct{ stepID string }

func (n *existsNode) eval(ctx Context) (interface{}, error) {
	return ctx.StepExists(n.stepID), nil
}

type resultFieldNode struct {
	stepID string
	field  string
}

func (n *resultFieldNode) eval(ctx Context) (interface{}, error) {
	v, ok := ctx.StepResult(n.stepID, n.field)
	if !ok {
		return nil, &ConditionError{Kind: ErrUnknownField, Detail: "no such result field: result(" + n.stepID + ")." + n.field}
	}
	return v, nil
}

type notNode struct{ operand node }

func (n *notNode) eval(ctx Context) (interface{}, error) {
	v, err := n.operand.eval(ctx)
	if err != nil {
		return nil, err
	}
	b, ok := v.(bool)
	if !ok {
		return nil, &ConditionError{Kind: ErrType, Detail: "! requires a boolean operand"}
	}
	return !b, nil
}

type boolOpNode struct {
	and   bool
	left  node
	right node
}

func (n *boolOpNode) eval(ctx Context) (interface{}, error) {
	lv, err := n.left.eval(ctx)
	if err != nil {
		return nil, err
	}
	lb, ok := lv.(bool)
	if !ok {
		return nil, &ConditionError{Kind: ErrType, Detail: "boolean operator requires boolean operands"}
	}
	if n.and && !lb {
		return false, nil
	}
	if !n.and && lb {
		return true, nil
	}
	rv, err := n.right.eval(ctx)
	if err != nil {
		return nil, err
	}
	rb, ok := rv.(bool)
	if !ok {
		return nil, &ConditionError{Kind: ErrType, Detail: "boolean operator requires boolean operands"}
	}
	return rb, nil
}

type compareNode struct {
	op    string
	left  node
	right node
}

func (n *compareNode) eval(ctx Context) (interface{}, error) {
	lv, err := n.left.eval(ctx)
	if err != nil {
		return nil, err
	}
	rv, err := n.right.eval(ctx)
	if err != nil {
		return nil, err
	}
	return compare(n.op, lv, rv)
}
