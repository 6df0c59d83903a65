package xlscope

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExpressionEvaluator evaluates data-access expressions against a context.
// Implementations must not mutate workbook state.
type ExpressionEvaluator interface {
	Evaluate(expression string, context any, globals map[string]any) (any, error)
}

// exprEvaluator implements ExpressionEvaluator using expr-lang/expr.
type exprEvaluator struct {
	cache sync.Map // expression string → compiled *vm.Program
}

// NewExpressionEvaluator creates an evaluator backed by expr-lang/expr with its
// own compiled-program cache. Pass it to several workbooks with WithEvaluator to
// share the cache.
func NewExpressionEvaluator() ExpressionEvaluator {
	return &exprEvaluator{}
}

// quoteReplacer undoes the typographic quotes spreadsheet editors insert.
var quoteReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`,
	"‘", "'", "’", "'",
)

func (e *exprEvaluator) Evaluate(expression string, context any, globals map[string]any) (any, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, nil
	}
	program, err := e.compile(expression)
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", expression, err)
	}
	result, err := expr.Run(program, buildEnv(context, globals))
	if err != nil {
		return nil, fmt.Errorf("evaluate expression %q: %w", expression, err)
	}
	return result, nil
}

// compile returns the cached program for expression, compiling it on first use.
// Programs are compiled without a typed environment so that one program serves
// every context shape.
func (e *exprEvaluator) compile(expression string) (*vm.Program, error) {
	if cached, ok := e.cache.Load(expression); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(quoteReplacer.Replace(expression), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	e.cache.Store(expression, program)
	return program, nil
}

// compileCheck reports a syntax error in expression without caching anything.
func compileCheck(expression string) error {
	_, err := expr.Compile(quoteReplacer.Replace(expression), expr.AllowUndefinedVariables())
	return err
}
