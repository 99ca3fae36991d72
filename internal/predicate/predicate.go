// Package predicate compiles boolean CEL expressions over one solution.
//
// An expression sees a single variable, sel, mapping participant to shop to
// the chosen item name:
//
//	sel["Adam"]["Fruit Shop"] == "Papaya" && sel["Bobby"]["Dish Shop"] != "Pasta"
//
// Pairs the participant is not eligible for are absent from the map; test
// them with the in operator ("Dish Shop" in sel["Adam"]).
package predicate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	gocache "github.com/patrickmn/go-cache"
)

// Selection is participant -> shop -> item.
type Selection map[string]map[string]string

// Predicate is a compiled expression.
type Predicate struct {
	expr    string
	program cel.Program
}

// String returns the source expression.
func (p *Predicate) String() string {
	return p.expr
}

// Eval runs the predicate against one selection.
func (p *Predicate) Eval(sel Selection) (bool, error) {
	vars := make(map[string]any, len(sel))
	for participant, shops := range sel {
		vars[participant] = shops
	}

	out, _, err := p.program.Eval(map[string]any{"sel": vars})
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", p.expr, err)
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("evaluate %q: result is %T, not bool", p.expr, out.Value())
	}
	return v, nil
}

// Compiler compiles expressions and caches the programs by source text.
// It is safe for concurrent use.
type Compiler struct {
	env   *cel.Env
	cache *gocache.Cache
}

// NewCompiler creates a compiler with an empty program cache.
func NewCompiler() (*Compiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("sel", cel.MapType(cel.StringType, cel.MapType(cel.StringType, cel.StringType))),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return &Compiler{
		env:   env,
		cache: gocache.New(gocache.NoExpiration, 0),
	}, nil
}

// Compile returns the program for expr, compiling it on first use.
// The expression must have boolean type.
func (c *Compiler) Compile(expr string) (*Predicate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("expression required")
	}
	if cached, ok := c.cache.Get(expr); ok {
		if p, ok := cached.(*Predicate); ok {
			return p, nil
		}
	}

	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("compile %q: expression must be boolean, got %s", expr, ast.OutputType())
	}
	program, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, err)
	}

	p := &Predicate{expr: expr, program: program}
	c.cache.Set(expr, p, gocache.DefaultExpiration)
	return p, nil
}

// Cached returns the number of cached programs.
func (c *Compiler) Cached() int {
	return c.cache.ItemCount()
}
