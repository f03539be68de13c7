package program

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/ctxlog"
	"github.com/vk/fablego/internal/safebuffer"
)

// writeProgramFile writes one fixture program file into dir and returns its path.
func writeProgramFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testCtx() context.Context {
	return ctxlog.WithLogger(context.Background(), ctxlog.Discard())
}

func TestLoadFiles_FeatureAndActivity(t *testing.T) {
	path := writeProgramFile(t, t.TempDir(), "app.fable.hcl", `
feature "main" {
  activity = "App: Start"

  action "log" {
    literal = "hello"
  }
}
`)

	prog, err := LoadFiles(testCtx(), path)
	require.NoError(t, err)
	require.Len(t, prog.FeatureSets, 1)

	fs := prog.FeatureSets[0]
	assert.Equal(t, "main", fs.Name)
	assert.Equal(t, "App: Start", fs.Activity)
	assert.Equal(t, RoleEntry, fs.Role.Kind)
	require.NotNil(t, fs.Source)
	assert.Equal(t, path, fs.Source.FilePath)
	assert.Equal(t, 2, fs.Source.Line)

	require.Len(t, fs.Statements, 1)
	action, ok := fs.Statements[0].(*ActionStatement)
	require.True(t, ok)
	assert.Equal(t, "log", action.Verb)
	require.NotNil(t, action.Literal)
	assert.Equal(t, "hello", *action.Literal)
}

func TestLoadFiles_StatementOrderAcrossBlockTypes(t *testing.T) {
	// Interleaved statement kinds must decode in declaration order; the
	// generated code runs them top to bottom.
	path := writeProgramFile(t, t.TempDir(), "order.fable.hcl", `
feature "ordered" {
  activity = "Keep things in order"

  action "retrieve" {}

  publish {
    name     = "out"
    variable = "result"
  }

  match {
    subject "status" {}
    case {
      wildcard = true
    }
  }

  action "log" {}

  foreach {
    item = "row"
    collection "rows" {}
  }
}
`)

	prog, err := LoadFiles(testCtx(), path)
	require.NoError(t, err)
	require.Len(t, prog.FeatureSets, 1)

	stmts := prog.FeatureSets[0].Statements
	require.Len(t, stmts, 5)
	assert.IsType(t, &ActionStatement{}, stmts[0])
	assert.IsType(t, &PublishStatement{}, stmts[1])
	assert.IsType(t, &MatchStatement{}, stmts[2])
	assert.IsType(t, &ActionStatement{}, stmts[3])
	assert.IsType(t, &ForEachLoop{}, stmts[4])
}

func TestDecodeAction_FullClauses(t *testing.T) {
	path := writeProgramFile(t, t.TempDir(), "clauses.fable.hcl", `
feature "reporting" {
  activity = "Build the report"

  action "compute" {
    result "total" {
      specifiers = ["number"]
    }
    object "line-items" {
      preposition = "from"
      specifiers  = ["sum"]
    }
    aggregate {
      type  = "sum"
      field = "amount"
    }
    where {
      field = "status"
      op    = "=="
      value = "active"
    }
    by {
      pattern = "^inv-"
      flags   = "i"
    }
  }
}
`)

	prog, err := LoadFiles(testCtx(), path)
	require.NoError(t, err)

	action := prog.FeatureSets[0].Statements[0].(*ActionStatement)
	assert.Equal(t, "compute", action.Verb)

	assert.Equal(t, "total", action.Result.Base)
	assert.Equal(t, []string{"number"}, action.Result.Specifiers)

	assert.Equal(t, "line-items", action.Object.Base)
	assert.Equal(t, PrepFrom, action.Object.Preposition)
	assert.Equal(t, []string{"sum"}, action.Object.Specifiers)

	require.NotNil(t, action.Aggregation)
	assert.Equal(t, "sum", action.Aggregation.Type)
	assert.Equal(t, "amount", action.Aggregation.Field)

	require.NotNil(t, action.Where)
	assert.Equal(t, "status", action.Where.Field)
	assert.Equal(t, "==", action.Where.Op)
	lit, ok := action.Where.Value.(*Literal)
	require.True(t, ok)
	assert.True(t, lit.Value.RawEquals(cty.StringVal("active")))

	require.NotNil(t, action.Pattern)
	assert.Equal(t, "^inv-", action.Pattern.Text)
	assert.Equal(t, "i", action.Pattern.Flags)
}

func TestDecodeAction_DefaultResult(t *testing.T) {
	path := writeProgramFile(t, t.TempDir(), "default.fable.hcl", `
feature "short" {
  activity = "Default result binding"

  action "retrieve" {
    object "orders" {
      preposition = "from"
    }
  }
}
`)

	prog, err := LoadFiles(testCtx(), path)
	require.NoError(t, err)

	action := prog.FeatureSets[0].Statements[0].(*ActionStatement)
	// A statement without a result block writes the conventional binding.
	assert.Equal(t, "result", action.Result.Base)
	assert.Empty(t, action.Result.Specifiers)
}

func TestDecodeMatch(t *testing.T) {
	path := writeProgramFile(t, t.TempDir(), "match.fable.hcl", `
feature "routing" {
  activity = "Route by status"

  match {
    subject "status" {
      specifiers = ["string"]
    }

    case {
      equals = "active"
      action "log" {
        literal = "running"
      }
    }

    case {
      regex = "^err"
      action "log" {
        literal = "failed"
      }
    }

    case {
      bind = "other"
      action "log" {}
    }

    otherwise {
      action "log" {
        literal = "unknown"
      }
    }
  }
}
`)

	prog, err := LoadFiles(testCtx(), path)
	require.NoError(t, err)

	match := prog.FeatureSets[0].Statements[0].(*MatchStatement)
	assert.Equal(t, "status", match.Subject.Base)
	assert.Equal(t, []string{"string"}, match.Subject.Specifiers)

	require.Len(t, match.Cases, 3)

	assert.Equal(t, CaseLiteral, match.Cases[0].Pattern.Kind)
	assert.True(t, match.Cases[0].Pattern.Literal.RawEquals(cty.StringVal("active")))
	require.Len(t, match.Cases[0].Body, 1)

	assert.Equal(t, CaseRegex, match.Cases[1].Pattern.Kind)
	assert.Equal(t, "^err", match.Cases[1].Pattern.Regex)

	assert.Equal(t, CaseBind, match.Cases[2].Pattern.Kind)
	assert.Equal(t, "other", match.Cases[2].Pattern.Name)

	require.Len(t, match.Otherwise, 1)
	otherwise := match.Otherwise[0].(*ActionStatement)
	require.NotNil(t, otherwise.Literal)
	assert.Equal(t, "unknown", *otherwise.Literal)
}

func TestDecodeMatch_MissingSubject(t *testing.T) {
	path := writeProgramFile(t, t.TempDir(), "bad.fable.hcl", `
feature "broken" {
  activity = "No subject"

  match {
    case {
      wildcard = true
    }
  }
}
`)

	_, err := LoadFiles(testCtx(), path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "missing subject")
}

func TestDecodeCase_ExactlyOnePattern(t *testing.T) {
	t.Run("two patterns rejected", func(t *testing.T) {
		path := writeProgramFile(t, t.TempDir(), "two.fable.hcl", `
feature "broken" {
  activity = "Two patterns"

  match {
    subject "status" {}
    case {
      equals = "a"
      bind   = "b"
    }
  }
}
`)
		_, err := LoadFiles(testCtx(), path)
		require.Error(t, err)
		assert.ErrorContains(t, err, "exactly one of")
	})

	t.Run("no pattern rejected", func(t *testing.T) {
		path := writeProgramFile(t, t.TempDir(), "none.fable.hcl", `
feature "broken" {
  activity = "No pattern"

  match {
    subject "status" {}
    case {
      action "log" {}
    }
  }
}
`)
		_, err := LoadFiles(testCtx(), path)
		require.Error(t, err)
		assert.ErrorContains(t, err, "exactly one of")
	})
}

func TestDecodeForEach(t *testing.T) {
	path := writeProgramFile(t, t.TempDir(), "loop.fable.hcl", `
feature "fanout" {
  activity = "Process each row"

  foreach {
    item     = "row"
    index    = "i"
    parallel = true
    limit    = 4
    where    = row.amount > 10

    collection "rows" {
      preposition = "from"
    }

    action "compute" {}
  }
}
`)

	prog, err := LoadFiles(testCtx(), path)
	require.NoError(t, err)

	loop := prog.FeatureSets[0].Statements[0].(*ForEachLoop)
	assert.Equal(t, "row", loop.ItemVar)
	assert.Equal(t, "i", loop.IndexVar)
	assert.True(t, loop.Parallel)
	assert.Equal(t, 4, loop.Concurrency)
	assert.Equal(t, "rows", loop.Collection.Base)
	assert.Equal(t, PrepFrom, loop.Collection.Preposition)
	require.Len(t, loop.Body, 1)

	filter, ok := loop.Filter.(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpGt, filter.Op)
	ref, ok := filter.Left.(*VariableRef)
	require.True(t, ok)
	assert.Equal(t, "row", ref.Base)
	assert.Equal(t, []string{"amount"}, ref.Specifiers)
}

func TestDecodeForEach_Defaults(t *testing.T) {
	path := writeProgramFile(t, t.TempDir(), "serial.fable.hcl", `
feature "serial" {
  activity = "Process rows in order"

  foreach {
    item = "row"
    collection "rows" {}
    action "log" {}
  }
}
`)

	prog, err := LoadFiles(testCtx(), path)
	require.NoError(t, err)

	loop := prog.FeatureSets[0].Statements[0].(*ForEachLoop)
	assert.False(t, loop.Parallel)
	assert.Zero(t, loop.Concurrency)
	assert.Empty(t, loop.IndexVar)
	assert.Nil(t, loop.Filter)
}

func TestDecodePublish(t *testing.T) {
	path := writeProgramFile(t, t.TempDir(), "pub.fable.hcl", `
feature "exporter" {
  activity = "Share the result"

  publish {
    name     = "daily-total"
    variable = "total"
  }
}
`)

	prog, err := LoadFiles(testCtx(), path)
	require.NoError(t, err)

	pub := prog.FeatureSets[0].Statements[0].(*PublishStatement)
	assert.Equal(t, "daily-total", pub.ExternalName)
	assert.Equal(t, "total", pub.InternalVariable)
}

func TestConvertExpression(t *testing.T) {
	decode := func(t *testing.T, exprSrc string) Expression {
		t.Helper()
		path := writeProgramFile(t, t.TempDir(), "expr.fable.hcl", `
feature "exprs" {
  activity = "Expression fixtures"

  action "compute" {
    expression = `+exprSrc+`
  }
}
`)
		prog, err := LoadFiles(testCtx(), path)
		require.NoError(t, err)
		return prog.FeatureSets[0].Statements[0].(*ActionStatement).Expression
	}

	t.Run("number literal", func(t *testing.T) {
		lit, ok := decode(t, `42`).(*Literal)
		require.True(t, ok)
		assert.True(t, lit.Value.RawEquals(cty.NumberIntVal(42)))
	})

	t.Run("negative number literal", func(t *testing.T) {
		lit, ok := decode(t, `-5`).(*Literal)
		require.True(t, ok)
		assert.True(t, lit.Value.RawEquals(cty.NumberIntVal(-5)))
	})

	t.Run("string literal", func(t *testing.T) {
		lit, ok := decode(t, `"plain"`).(*Literal)
		require.True(t, ok)
		assert.True(t, lit.Value.RawEquals(cty.StringVal("plain")))
	})

	t.Run("boolean literal", func(t *testing.T) {
		lit, ok := decode(t, `true`).(*Literal)
		require.True(t, ok)
		assert.True(t, lit.Value.RawEquals(cty.True))
	})

	t.Run("variable reference with specifiers", func(t *testing.T) {
		ref, ok := decode(t, `order.customer.name`).(*VariableRef)
		require.True(t, ok)
		assert.Equal(t, "order", ref.Base)
		assert.Equal(t, []string{"customer", "name"}, ref.Specifiers)
	})

	t.Run("indexed reference", func(t *testing.T) {
		ref, ok := decode(t, `rows[0]`).(*VariableRef)
		require.True(t, ok)
		assert.Equal(t, "rows", ref.Base)
		assert.Equal(t, []string{"0"}, ref.Specifiers)
	})

	t.Run("binary precedence", func(t *testing.T) {
		add, ok := decode(t, `1 + 2 * 3`).(*Binary)
		require.True(t, ok)
		assert.Equal(t, OpAdd, add.Op)
		mul, ok := add.Right.(*Binary)
		require.True(t, ok)
		assert.Equal(t, OpMul, mul.Op)
	})

	t.Run("grouping preserved", func(t *testing.T) {
		mul, ok := decode(t, `(1 + 2) * 3`).(*Binary)
		require.True(t, ok)
		assert.Equal(t, OpMul, mul.Op)
		grouped, ok := mul.Left.(*Grouped)
		require.True(t, ok)
		assert.IsType(t, &Binary{}, grouped.Inner)
	})

	t.Run("array literal", func(t *testing.T) {
		arr, ok := decode(t, `[1, "two", three]`).(*ArrayLiteral)
		require.True(t, ok)
		require.Len(t, arr.Items, 3)
		assert.IsType(t, &Literal{}, arr.Items[0])
		assert.IsType(t, &Literal{}, arr.Items[1])
		assert.IsType(t, &VariableRef{}, arr.Items[2])
	})

	t.Run("map literal keeps entry order", func(t *testing.T) {
		m, ok := decode(t, `{ name = "x", age = 3 }`).(*MapLiteral)
		require.True(t, ok)
		require.Len(t, m.Entries, 2)
		assert.Equal(t, "name", m.Entries[0].Key)
		assert.Equal(t, "age", m.Entries[1].Key)
	})

	t.Run("interpolated string", func(t *testing.T) {
		interp, ok := decode(t, `"Hello, ${user.name}!"`).(*InterpolatedString)
		require.True(t, ok)
		require.Len(t, interp.Parts, 3)
		assert.Equal(t, "Hello, ", interp.Parts[0].Literal)
		assert.Equal(t, "user.name", interp.Parts[1].Interp)
		assert.Equal(t, "!", interp.Parts[2].Literal)
	})

	t.Run("comparison operators", func(t *testing.T) {
		cmp, ok := decode(t, `count >= 10`).(*Binary)
		require.True(t, ok)
		assert.Equal(t, OpGte, cmp.Op)
	})

	t.Run("logical operators", func(t *testing.T) {
		and, ok := decode(t, `ready && count > 0`).(*Binary)
		require.True(t, ok)
		assert.Equal(t, OpAnd, and.Op)
	})
}

func TestConvertExpression_UnsupportedForms(t *testing.T) {
	path := writeProgramFile(t, t.TempDir(), "bad.fable.hcl", `
feature "broken" {
  activity = "Function calls are not in the model"

  action "compute" {
    expression = upper("x")
  }
}
`)

	_, err := LoadFiles(testCtx(), path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported expression")
}

func TestConvertTemplate_ComplexInterpolationDegrades(t *testing.T) {
	// A template part richer than a variable reference becomes an empty
	// placeholder, and the load logs a warning naming the location.
	logBuf := &safebuffer.SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(logBuf, nil))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	path := writeProgramFile(t, t.TempDir(), "warn.fable.hcl", `
feature "warned" {
  activity = "Degrading template"

  action "log" {
    expression = "value: ${upper(name)}"
  }
}
`)

	prog, err := LoadFiles(ctx, path)
	require.NoError(t, err)

	interp := prog.FeatureSets[0].Statements[0].(*ActionStatement).Expression.(*InterpolatedString)
	require.Len(t, interp.Parts, 2)
	assert.Equal(t, "value: ", interp.Parts[0].Literal)
	assert.Empty(t, interp.Parts[1].Literal)
	assert.Empty(t, interp.Parts[1].Interp)

	assert.Contains(t, logBuf.String(), "empty placeholder")
}

func TestLoadPath_Directory(t *testing.T) {
	dir := t.TempDir()
	// Written out of lexical order on purpose; loading must sort.
	writeProgramFile(t, dir, "b.fable.hcl", `
feature "second" {
  activity = "Later file"
}
`)
	writeProgramFile(t, dir, "a.fable.hcl", `
feature "first" {
  activity = "Earlier file"
}
`)
	// Files without the program extension are ignored.
	writeProgramFile(t, dir, "notes.txt", "not a program")

	prog, err := LoadPath(testCtx(), dir)
	require.NoError(t, err)
	require.Len(t, prog.FeatureSets, 2)
	assert.Equal(t, "first", prog.FeatureSets[0].Name)
	assert.Equal(t, "second", prog.FeatureSets[1].Name)
}

func TestLoadPath_SingleFile(t *testing.T) {
	path := writeProgramFile(t, t.TempDir(), "solo.fable.hcl", `
feature "solo" {
  activity = "Only file"
}
`)

	prog, err := LoadPath(testCtx(), path)
	require.NoError(t, err)
	require.Len(t, prog.FeatureSets, 1)
	assert.Equal(t, "solo", prog.FeatureSets[0].Name)
}

func TestLoadPath_EmptyDirectory(t *testing.T) {
	prog, err := LoadPath(testCtx(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, prog.FeatureSets)
}

func TestLoadPath_MissingPath(t *testing.T) {
	_, err := LoadPath(testCtx(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to open program path")
}

func TestLoadFiles_ParseError(t *testing.T) {
	path := writeProgramFile(t, t.TempDir(), "syntax.fable.hcl", `feature "broken" {`)

	_, err := LoadFiles(testCtx(), path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to parse program file")
}

func TestLoadFiles_UnknownTopLevelBlock(t *testing.T) {
	path := writeProgramFile(t, t.TempDir(), "extra.fable.hcl", `
grid "nope" {
}
`)

	_, err := LoadFiles(testCtx(), path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to decode program file")
}

func TestLoadFiles_MissingActivity(t *testing.T) {
	path := writeProgramFile(t, t.TempDir(), "noact.fable.hcl", `
feature "bare" {
}
`)

	_, err := LoadFiles(testCtx(), path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "activity")
}

func TestDecodeDescriptor_Errors(t *testing.T) {
	t.Run("unknown preposition", func(t *testing.T) {
		path := writeProgramFile(t, t.TempDir(), "prep.fable.hcl", `
feature "broken" {
  activity = "Bad preposition"

  action "retrieve" {
    object "orders" {
      preposition = "underneath"
    }
  }
}
`)
		_, err := LoadFiles(testCtx(), path)
		require.Error(t, err)
		assert.ErrorContains(t, err, "unknown preposition")
	})

	t.Run("result rejects preposition", func(t *testing.T) {
		path := writeProgramFile(t, t.TempDir(), "resprep.fable.hcl", `
feature "broken" {
  activity = "Result with preposition"

  action "retrieve" {
    result "total" {
      preposition = "from"
    }
  }
}
`)
		_, err := LoadFiles(testCtx(), path)
		require.Error(t, err)
		assert.ErrorContains(t, err, "no preposition")
	})
}
