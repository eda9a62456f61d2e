package expr

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dTxn/lib/doc"
	"github.com/ValentinKolb/dTxn/lib/txn"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// Variable is the name under which the document is visible in an expression
const Variable = "doc"

// Evaluator holds a compiled CEL expression that computes a patch for a document.
type Evaluator struct {
	Expression string
	program    cel.Program
}

// NewEvaluator compiles expression. The expression sees the current document
// as `doc` and must evaluate to a map (or null for no change), e.g.
//
//	{"val": doc.val + 3.0, "old": null}
func NewEvaluator(expression string) (*Evaluator, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression can't be empty")
	}

	env, err := cel.NewEnv(
		cel.Variable(Variable, cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("error compiling CEL expression: %w", issues.Err())
	}
	p, err := env.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, fmt.Errorf("error creating program: %w", err)
	}

	return &Evaluator{
		Expression: expression,
		program:    p,
	}, nil
}

// Patch evaluates the expression against d and returns the resulting patch.
// A nil patch means no change.
func (e *Evaluator) Patch(ctx context.Context, d doc.Document) (map[string]any, error) {
	out, _, err := e.program.ContextEval(ctx, map[string]any{Variable: map[string]any(d)})
	if err != nil {
		return nil, fmt.Errorf("error evaluating CEL expression: %w", err)
	}
	if out == types.NullValue {
		return nil, nil
	}

	m, ok := out.(traits.Mapper)
	if !ok {
		return nil, fmt.Errorf("expression must evaluate to a map, got %s", out.Type().TypeName())
	}
	v, err := native(m)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// Apply merges the patch into d. Fields patched to null are removed.
func (e *Evaluator) Apply(ctx context.Context, d doc.Document) error {
	patch, err := e.Patch(ctx, d)
	if err != nil {
		return err
	}
	for k, v := range patch {
		if v == nil {
			delete(d, k)
			continue
		}
		d[k] = v
	}
	return nil
}

// Operation returns the evaluator as a transaction operation
func (e *Evaluator) Operation() txn.Operation {
	return func(ctx context.Context, d doc.Document) (doc.Document, error) {
		return nil, e.Apply(ctx, d)
	}
}

// Compile is a shorthand for NewEvaluator followed by Operation
func Compile(expression string) (txn.Operation, error) {
	e, err := NewEvaluator(expression)
	if err != nil {
		return nil, err
	}
	return e.Operation(), nil
}

// native converts a CEL value into the shapes produced by doc.Decode
func native(v ref.Val) (any, error) {
	switch v := v.(type) {
	case types.Null:
		return nil, nil
	case traits.Mapper:
		out := make(map[string]any)
		for it := v.Iterator(); it.HasNext() == types.True; {
			key := it.Next()
			name, ok := key.Value().(string)
			if !ok {
				return nil, fmt.Errorf("map keys must be strings, got %s", key.Type().TypeName())
			}
			val, err := native(v.Get(key))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			out[name] = val
		}
		return out, nil
	case traits.Lister:
		out := []any{}
		for it := v.Iterator(); it.HasNext() == types.True; {
			val, err := native(it.Next())
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	default:
		return v.Value(), nil
	}
}
