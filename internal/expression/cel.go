package expression

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// ErrEvaluation wraps failures to parse, compile or run a template expression.
var ErrEvaluation = errors.New("expression evaluation failed")

// Evaluator renders templates. ok is false when the template evaluated to null.
type Evaluator interface {
	Evaluate(template string, vars map[string]any) (value string, ok bool, err error)
}

// CELEvaluator evaluates #{...} segments as CEL expressions. Every variable is
// declared with the dyn type. Compiled programs are cached per expression and
// variable name set. Safe for concurrent use.
type CELEvaluator struct {
	logger   *slog.Logger
	programs sync.Map // programKey -> cel.Program
}

type programKey struct {
	expression string
	variables  string
}

var _ Evaluator = (*CELEvaluator)(nil)

// NewCELEvaluator creates an evaluator.
func NewCELEvaluator(logger *slog.Logger) *CELEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CELEvaluator{logger: logger}
}

// Evaluate renders template. A template made of one expression that yields
// null returns ok == false; null parts of a mixed template render as "".
func (e *CELEvaluator) Evaluate(template string, vars map[string]any) (string, bool, error) {
	segments, err := parseTemplate(template)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrEvaluation, err)
	}
	if vars == nil {
		vars = map[string]any{}
	}

	var b strings.Builder
	for _, seg := range segments {
		if !seg.expression {
			b.WriteString(seg.text)
			continue
		}
		value, ok, err := e.evaluateExpression(seg.text, vars)
		if err != nil {
			return "", false, err
		}
		if !ok {
			if len(segments) == 1 {
				return "", false, nil
			}
			continue
		}
		b.WriteString(value)
	}
	return b.String(), true, nil
}

func (e *CELEvaluator) evaluateExpression(expr string, vars map[string]any) (string, bool, error) {
	prg, err := e.program(expr, vars)
	if err != nil {
		return "", false, err
	}

	out, _, err := prg.Eval(vars)
	if err != nil {
		return "", false, fmt.Errorf("%w: evaluate %q: %v", ErrEvaluation, expr, err)
	}
	return toString(expr, out)
}

func (e *CELEvaluator) program(expr string, vars map[string]any) (cel.Program, error) {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	key := programKey{expression: expr, variables: strings.Join(names, ",")}
	if cached, ok := e.programs.Load(key); ok {
		return cached.(cel.Program), nil
	}

	opts := make([]cel.EnvOption, 0, len(names))
	for _, name := range names {
		opts = append(opts, cel.Variable(name, cel.DynType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: build environment: %v", ErrEvaluation, err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: compile %q: %v", ErrEvaluation, expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: program %q: %v", ErrEvaluation, expr, err)
	}

	e.logger.Debug("compiled name expression",
		slog.String("expression", expr),
		slog.Int("variables", len(names)),
	)
	actual, _ := e.programs.LoadOrStore(key, prg)
	return actual.(cel.Program), nil
}

func toString(expr string, out ref.Val) (string, bool, error) {
	if _, isNull := out.(types.Null); isNull {
		return "", false, nil
	}
	if s, ok := out.Value().(string); ok {
		return s, true, nil
	}

	converted := out.ConvertToType(types.StringType)
	if types.IsError(converted) {
		return "", false, fmt.Errorf("%w: %q yields %s, not convertible to string", ErrEvaluation, expr, out.Type().TypeName())
	}
	s, ok := converted.Value().(string)
	if !ok {
		return "", false, fmt.Errorf("%w: %q yields %s, not convertible to string", ErrEvaluation, expr, out.Type().TypeName())
	}
	return s, true, nil
}
