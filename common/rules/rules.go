// Package rules evaluates per-round score validation rules written in
// CEL (Common Expression Language). A round may carry an expression
// such as "value >= 1 && value <= 15"; a false result rejects the
// score write.
package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// ScoreInput is the variable set a rule expression may reference.
type ScoreInput struct {
	Value int
	Unit  int
	Putts int
}

// Evaluator compiles and evaluates score rules with caching
type Evaluator struct {
	cache map[string]cel.Program
	mu    sync.RWMutex
}

// NewEvaluator creates a new rule evaluator with caching
func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: make(map[string]cel.Program),
	}
}

// Allow evaluates expr against the score input. An empty expression
// allows everything.
func (e *Evaluator) Allow(expr string, in ScoreInput) (bool, error) {
	if expr == "" {
		return true, nil
	}

	e.mu.RLock()
	prg, exists := e.cache[expr]
	e.mu.RUnlock()

	if !exists {
		var err error
		prg, err = e.compile(expr)
		if err != nil {
			return false, err
		}

		e.mu.Lock()
		e.cache[expr] = prg
		e.mu.Unlock()
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"value": in.Value,
		"unit":  in.Unit,
		"putts": in.Putts,
	})
	if err != nil {
		return false, fmt.Errorf("rule evaluation error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule did not return boolean, got %T", out.Value())
	}

	return result, nil
}

// Validate checks that expr compiles, caching the program for later
// evaluation. Used at round creation so a bad rule is rejected up
// front instead of on the first score write.
func (e *Evaluator) Validate(expr string) error {
	if expr == "" {
		return nil
	}

	e.mu.RLock()
	_, exists := e.cache[expr]
	e.mu.RUnlock()
	if exists {
		return nil
	}

	prg, err := e.compile(expr)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()
	return nil
}

func (e *Evaluator) compile(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("value", cel.IntType),
		cel.Variable("unit", cel.IntType),
		cel.Variable("putts", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("rule compilation error: %w", issues.Err())
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("rule must evaluate to a boolean, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return prg, nil
}
