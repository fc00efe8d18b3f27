package v1

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/vocadrill/vocadrill/plugin/srs"
	"github.com/vocadrill/vocadrill/store"
)

// cardFilterEnv compiles CEL filter expressions for card listings.
//
// Supported variables:
//   - word, translation, state (strings)
//   - interval_days, success_streak (ints)
//   - accuracy (double in [0,1])
//   - due (bool)
//
// Example: `state == "LEARNING" && accuracy < 0.6`.
type cardFilterEnv struct {
	env *cel.Env
}

func newCardFilterEnv() (*cardFilterEnv, error) {
	env, err := cel.NewEnv(
		cel.Variable("word", cel.StringType),
		cel.Variable("translation", cel.StringType),
		cel.Variable("state", cel.StringType),
		cel.Variable("interval_days", cel.IntType),
		cel.Variable("success_streak", cel.IntType),
		cel.Variable("accuracy", cel.DoubleType),
		cel.Variable("due", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create card filter environment: %w", err)
	}
	return &cardFilterEnv{env: env}, nil
}

// compile parses one filter expression into an evaluable program.
func (f *cardFilterEnv) compile(expr string) (cel.Program, error) {
	ast, issues := f.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	return f.env.Program(ast)
}

// matches evaluates a compiled filter against one card. The state variable
// carries the classified label, so legacy records filter the same way they
// display.
func (f *cardFilterEnv) matches(prg cel.Program, card *store.Card, reviewStats srs.ReviewStats, due bool) (bool, error) {
	out, _, err := prg.Eval(map[string]any{
		"word":           card.Word,
		"translation":    card.Translation,
		"state":          string(srs.Classify(reviewStats).Label),
		"interval_days":  reviewStats.IntervalDays,
		"success_streak": reviewStats.SuccessStreak,
		"accuracy":       reviewStats.Accuracy(),
		"due":            due,
	})
	if err != nil {
		return false, err
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter must evaluate to a boolean, got %s", out.Type().TypeName())
	}
	return matched, nil
}
