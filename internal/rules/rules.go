// package rules compiles keep rules written in CEL into track predicates.
//
// A rule is a boolean CEL expression over one track. It keeps the track when it
// evaluates to true. For example:
//
//	popularity >= 40 && !explicit
//	!has_play_count || play_count >= 10000000
//	duration_ms < 600000 && !name.lowerAscii().contains("remix")
//
// play_count is only bound when the service reports one; Spotify does not. A rule
// that reads it for such a track fails to evaluate, and the track is kept.
//
// The empty rule keeps every track.
package rules

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cull/internal/curation"
	"github.com/desertthunder/cull/internal/models"
	"github.com/desertthunder/cull/internal/shared"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// Variable describes a track field visible to rules.
type Variable struct {
	Name string
	Type *cel.Type
	Help string
}

// Variables lists the fields a rule may reference.
var Variables = []Variable{
	{Name: "id", Type: cel.StringType, Help: "track identifier"},
	{Name: "name", Type: cel.StringType, Help: "track title"},
	{Name: "artist", Type: cel.StringType, Help: "first credited artist"},
	{Name: "album", Type: cel.StringType, Help: "album title"},
	{Name: "popularity", Type: cel.IntType, Help: "popularity score, 0 to 100"},
	{Name: "play_count", Type: cel.IntType, Help: "play count, unset when unknown"},
	{Name: "has_play_count", Type: cel.BoolType, Help: "whether play_count is known"},
	{Name: "duration_ms", Type: cel.IntType, Help: "duration in milliseconds"},
	{Name: "explicit", Type: cel.BoolType, Help: "explicit content flag"},
	{Name: "added_at", Type: cel.StringType, Help: "RFC 3339 time the track was added"},
}

// Rule is a compiled keep rule.
type Rule struct {
	expr    string
	program cel.Program
	logger  *log.Logger
	warned  atomic.Bool
}

func newEnv() (*cel.Env, error) {
	opts := []cel.EnvOption{ext.Strings()}
	for _, v := range Variables {
		opts = append(opts, cel.Variable(v.Name, v.Type))
	}
	return cel.NewEnv(opts...)
}

// Compile parses and type-checks expr. The result type must be bool.
func Compile(expr string) (*Rule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &Rule{logger: shared.DiscardLogger()}, nil
	}

	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("creating CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidRule, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: rule must evaluate to bool, got %s", shared.ErrInvalidRule, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: building program: %v", shared.ErrInvalidRule, err)
	}

	return &Rule{expr: expr, program: program, logger: shared.DiscardLogger()}, nil
}

// WithLogger sets the logger used to report evaluation errors.
func (r *Rule) WithLogger(l *log.Logger) *Rule {
	if l != nil {
		r.logger = l
	}
	return r
}

// Eval evaluates the rule against t.
func (r *Rule) Eval(t models.Track) (bool, error) {
	if r.program == nil {
		return true, nil
	}

	out, _, err := r.program.Eval(activation(t))
	if err != nil {
		return false, err
	}

	keep, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: non-bool result %v", shared.ErrInvalidRule, out.Value())
	}
	return keep, nil
}

// Keep reports whether t should be surfaced. A track the rule cannot evaluate is kept.
// The first failure is logged as a warning, later ones at debug level.
func (r *Rule) Keep(t models.Track) bool {
	keep, err := r.Eval(t)
	if err != nil {
		if r.warned.CompareAndSwap(false, true) {
			r.logger.Warn("rule evaluation failed, keeping track", "track", t.ID, "error", err)
		} else {
			r.logger.Debug("rule evaluation failed, keeping track", "track", t.ID, "error", err)
		}
		return true
	}
	return keep
}

// Predicate returns the rule as a [curation.Predicate].
func (r *Rule) Predicate() curation.Predicate {
	if r.program == nil {
		return curation.KeepAll
	}
	return r.Keep
}

// String returns the source expression.
func (r *Rule) String() string { return r.expr }

// Empty reports whether the rule keeps everything without evaluating.
func (r *Rule) Empty() bool { return r.program == nil }

func activation(t models.Track) map[string]any {
	vars := map[string]any{
		"id":             t.ID,
		"name":           t.Name,
		"artist":         t.Artist,
		"album":          t.Album,
		"popularity":     int64(t.Popularity),
		"has_play_count": t.HasPlayCount,
		"duration_ms":    int64(t.DurationMS),
		"explicit":       t.Explicit,
		"added_at":       t.AddedAt,
	}
	if t.HasPlayCount {
		vars["play_count"] = t.PlayCount
	}
	return vars
}
