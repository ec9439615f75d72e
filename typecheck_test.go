package titocc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// firstExprStmt returns the resolved expression of the i-th top-level
// statement in a function's body, after sema+typecheck has run.
func firstExprStmt(t *testing.T, typed *TypedUnit, fnIdx, stmtIdx int) Expr {
	t.Helper()
	require.Greater(t, len(typed.Funcs), fnIdx)
	body := typed.Funcs[fnIdx].Body
	require.Greater(t, len(body.Items), stmtIdx)
	es, ok := body.Items[stmtIdx].Stmt.(*ExprStmt)
	require.True(t, ok, "expected an ExprStmt")
	return es.Expr
}

func TestTypecheckArrayDecaysToPointerOnUse(t *testing.T) {
	typed, sink := runSema(t, `
	int a[5];
	void f() { a[0]; }
	`)
	require.False(t, sink.HasErrors())
	e := firstExprStmt(t, typed, 0, 0)
	idx := e.(*IndexExpr)
	ty := ExprType(idx.Base)
	require.NotNil(t, ty)
	assert.True(t, ty.IsPointer())
	assert.True(t, ty.Elem.IsInt())
}

func TestTypecheckUnsignedConversionInserted(t *testing.T) {
	typed, sink := runSema(t, `
	void f() { int a; unsigned b; a + b; }
	`)
	require.False(t, sink.HasErrors())
	e := firstExprStmt(t, typed, 0, 2)
	bin := e.(*BinaryExpr)
	conv, ok := bin.Lhs.(*ConvExpr)
	require.True(t, ok, "expected the signed operand to be wrapped in a ConvExpr")
	assert.Equal(t, ConvIntToUint, conv.Kind)
	assert.True(t, ExprType(bin).IsUnsigned())
}

func TestTypecheckPointerArithmeticPreservesPointerType(t *testing.T) {
	typed, sink := runSema(t, `
	void f() { int *p; int i; p + i; }
	`)
	require.False(t, sink.HasErrors())
	e := firstExprStmt(t, typed, 0, 2)
	ty := ExprType(e)
	require.NotNil(t, ty)
	assert.True(t, ty.IsPointer())
}

func TestTypecheckPointerSubtractionYieldsInt(t *testing.T) {
	typed, sink := runSema(t, `
	void f() { int *p; int *q; p - q; }
	`)
	require.False(t, sink.HasErrors())
	e := firstExprStmt(t, typed, 0, 2)
	ty := ExprType(e)
	require.NotNil(t, ty)
	assert.True(t, ty.IsInt())
	assert.False(t, ty.IsPointer())
}

func TestTypecheckUndeclaredIdentifierIsError(t *testing.T) {
	_, sink := runSema(t, `void f() { undeclared_name; }`)
	require.True(t, sink.HasErrors())
	assert.Equal(t, UndeclaredIdentifier, sink.Diagnostics()[0].Kind)
}

func TestTypecheckWrongArgumentCountIsTypeError(t *testing.T) {
	_, sink := runSema(t, `
	int add(int a, int b);
	void f() { add(1); }
	`)
	require.True(t, sink.HasErrors())
	assert.Equal(t, TypeError, sink.Diagnostics()[0].Kind)
}

func TestTypecheckFunctionPointerCallDecaysCallee(t *testing.T) {
	typed, sink := runSema(t, `
	int add(int a, int b);
	void f() { int (*fp)(int, int); fp = add; fp(1, 2); }
	`)
	require.False(t, sink.HasErrors())
	e := firstExprStmt(t, typed, 0, 2)
	call := e.(*CallExpr)
	assert.True(t, ExprType(call).IsInt())
}

func TestTypecheckShortCircuitOperandsAreInt(t *testing.T) {
	typed, sink := runSema(t, `
	void f() { int a; int b; a && b; }
	`)
	require.False(t, sink.HasErrors())
	e := firstExprStmt(t, typed, 0, 2)
	assert.True(t, ExprType(e).IsInt())
}
