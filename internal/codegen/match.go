package codegen

import (
	"context"
	"fmt"
	"regexp"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/program"
	"github.com/vk/fablego/internal/runtime"
)

// loweredCase is one pre-compiled match arm.
type loweredCase struct {
	kind    program.CasePatternKind
	literal cty.Value
	name    string
	regex   *regexp.Regexp
	body    []stepFunc
}

// lowerMatch turns a match statement into a step that resolves the subject
// once and runs the first arm whose pattern accepts it. Literal arms compare
// loosely, wildcard arms always accept, bind arms accept and bind the
// subject under the pattern name in the current scope, regex arms match the
// subject's string rendering. With no matching arm and no otherwise block
// the statement is a no-op.
func (g *generator) lowerMatch(stmt *program.MatchStatement) (stepFunc, error) {
	g.pool.Intern(stmt.Subject.Base)
	g.pool.InternAll(stmt.Subject.Specifiers...)

	cases := make([]loweredCase, 0, len(stmt.Cases))
	for i, c := range stmt.Cases {
		lc := loweredCase{kind: c.Pattern.Kind, literal: c.Pattern.Literal, name: c.Pattern.Name}
		switch c.Pattern.Kind {
		case program.CaseLiteral:
			if lc.literal != cty.NilVal && !lc.literal.IsNull() && lc.literal.Type() == cty.String {
				g.pool.Intern(lc.literal.AsString())
			}
		case program.CaseBind:
			g.pool.Intern(c.Pattern.Name)
		case program.CaseRegex:
			g.pool.Intern(c.Pattern.Regex)
			re, err := regexp.Compile(c.Pattern.Regex)
			if err != nil {
				return nil, fmt.Errorf("case %d: invalid pattern %q: %w", i+1, c.Pattern.Regex, err)
			}
			lc.regex = re
		}
		body, err := g.lowerStatements(c.Body)
		if err != nil {
			return nil, fmt.Errorf("case %d: %w", i+1, err)
		}
		lc.body = body
		cases = append(cases, lc)
	}

	var otherwise []stepFunc
	if len(stmt.Otherwise) > 0 {
		var err error
		otherwise, err = g.lowerStatements(stmt.Otherwise)
		if err != nil {
			return nil, fmt.Errorf("otherwise: %w", err)
		}
	}

	subject := stmt.Subject

	return func(ctx context.Context, rt *runtime.Runtime, ec runtime.ContextID) (cty.Value, error) {
		subj, err := rt.ResolvePath(ec, subject.Base, subject.Specifiers)
		if err != nil {
			return cty.NilVal, fmt.Errorf("match subject: %w", err)
		}
		for _, c := range cases {
			if !c.accepts(subj) {
				continue
			}
			if c.kind == program.CaseBind {
				if err := rt.BindValue(ec, c.name, subj); err != nil {
					return cty.NilVal, err
				}
			}
			return runSteps(ctx, rt, ec, c.body)
		}
		if otherwise != nil {
			return runSteps(ctx, rt, ec, otherwise)
		}
		return cty.NilVal, nil
	}, nil
}

func (c *loweredCase) accepts(subj cty.Value) bool {
	switch c.kind {
	case program.CaseLiteral:
		return runtime.LooseEquals(subj, c.literal)
	case program.CaseWildcard, program.CaseBind:
		return true
	case program.CaseRegex:
		s, err := runtime.CoerceString(subj)
		return err == nil && c.regex.MatchString(s)
	default:
		return false
	}
}
