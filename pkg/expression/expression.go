package expression

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/plexcache/plexcache/pkg/config"
)

type CompiledExpression struct {
	Text    string
	Program *vm.Program
}

// Compile builds programs for the given filter expressions. Expressions
// are evaluated against a MediaFile environment and must yield a bool.
func Compile(expressions []string) ([]CompiledExpression, error) {
	compiled := make([]CompiledExpression, 0, len(expressions))

	for _, text := range expressions {
		program, err := expr.Compile(text, expr.Env(&config.MediaFile{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile expression %q: %w", text, err)
		}

		compiled = append(compiled, CompiledExpression{
			Text:    text,
			Program: program,
		})
	}

	return compiled, nil
}

// CheckMediaSingleMatch reports whether any expression matches the file,
// returning the text of the first match.
func CheckMediaSingleMatch(m *config.MediaFile, expressions []CompiledExpression) (bool, string, error) {
	for _, expression := range expressions {
		result, err := expr.Run(expression.Program, m)
		if err != nil {
			return false, "", fmt.Errorf("check expression: %w", err)
		}

		expResult, ok := result.(bool)
		if !ok {
			return false, "", fmt.Errorf("expression result is not a bool: %T", result)
		}

		if expResult {
			return true, expression.Text, nil
		}
	}

	return false, "", nil
}
