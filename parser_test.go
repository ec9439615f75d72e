package titocc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSource(t *testing.T, src string) *TranslationUnit {
	t.Helper()
	sink := newDiagnosticSink(64)
	lx := NewLexer([]byte(src), sink)
	toks := lx.Tokenize()
	require.False(t, sink.HasErrors(), "unexpected lex errors: %v", sink.Diagnostics())
	p := NewParser(toks, sink)
	tu, err := p.Parse()
	require.NoError(t, err)
	require.False(t, sink.HasErrors(), "unexpected parse errors: %v", sink.Diagnostics())
	return tu
}

func firstDeclarator(t *testing.T, tu *TranslationUnit) *Declarator {
	t.Helper()
	require.NotEmpty(t, tu.Decls)
	require.NotEmpty(t, tu.Decls[0].Items)
	return tu.Decls[0].Items[0].Declar
}

func TestParserSimpleDeclarations(t *testing.T) {
	tu := parseSource(t, "int x;")
	d := firstDeclarator(t, tu)
	assert.Equal(t, "x", d.Name)
	assert.True(t, d.Type.IsInt())
}

func TestParserPointerDeclaration(t *testing.T) {
	tu := parseSource(t, "int *p;")
	d := firstDeclarator(t, tu)
	assert.Equal(t, "p", d.Name)
	require.True(t, d.Type.IsPointer())
	assert.True(t, d.Type.Elem.IsInt())
}

func TestParserArrayDeclaration(t *testing.T) {
	tu := parseSource(t, "int a[10];")
	d := firstDeclarator(t, tu)
	require.True(t, d.Type.IsArray())
	assert.Equal(t, 10, d.Type.Len)
	assert.True(t, d.Type.Elem.IsInt())
}

func TestParserFunctionPrototype(t *testing.T) {
	tu := parseSource(t, "int add(int a, int b);")
	d := firstDeclarator(t, tu)
	require.True(t, d.Type.IsFunction())
	assert.True(t, d.Type.Ret.IsInt())
	require.Len(t, d.Type.Params, 2)
	assert.Equal(t, []string{"a", "b"}, d.ParamNames)
}

func TestParserFunctionPointerDeclarator(t *testing.T) {
	// Chibicc-style two-pass resolution: (*fp) is a pointer, the
	// outer () makes the pointed-to type a function.
	tu := parseSource(t, "int (*fp)(int);")
	d := firstDeclarator(t, tu)
	require.True(t, d.Type.IsPointer(), "expected pointer, got %s", d.Type.String())
	require.True(t, d.Type.Elem.IsFunction(), "expected pointer-to-function, got %s", d.Type.Elem.String())
	assert.True(t, d.Type.Elem.Ret.IsInt())
}

func TestParserPointerToArrayDeclarator(t *testing.T) {
	tu := parseSource(t, "int (*pa)[4];")
	d := firstDeclarator(t, tu)
	require.True(t, d.Type.IsPointer())
	require.True(t, d.Type.Elem.IsArray())
	assert.Equal(t, 4, d.Type.Elem.Len)
}

func TestParserFunctionDefinitionHasBody(t *testing.T) {
	tu := parseSource(t, "int main() { return 0; }")
	require.Len(t, tu.Decls, 1)
	item := tu.Decls[0].Items[0]
	require.NotNil(t, item.Body)
	require.Len(t, item.Body.Items, 1)
}

func TestParserStatementForms(t *testing.T) {
	src := `
	int f() {
		int i;
		for (i = 0; i < 10; ++i) {
			if (i == 5)
				break;
			else
				continue;
		}
		while (i > 0)
			--i;
		do
			++i;
		while (i < 1);
		return i;
	}`
	tu := parseSource(t, src)
	body := tu.Decls[0].Items[0].Body
	require.NotNil(t, body)
	// int i; for(...); while(...); do...while(...); return i;
	assert.Len(t, body.Items, 5)
}

func TestParserUnaryAndSizeof(t *testing.T) {
	tu := parseSource(t, "int f() { return sizeof(int) + sizeof(char*); }")
	body := tu.Decls[0].Items[0].Body
	require.Len(t, body.Items, 1)
	ret, ok := body.Items[0].Stmt.(*ReturnStmt)
	require.True(t, ok)
	_, ok = ret.Value.(*BinaryExpr)
	assert.True(t, ok)
}

func TestParserMultipleInitDeclarators(t *testing.T) {
	tu := parseSource(t, "int a = 1, *b, c[3];")
	require.Len(t, tu.Decls[0].Items, 3)
	assert.Equal(t, "a", tu.Decls[0].Items[0].Declar.Name)
	assert.Equal(t, "b", tu.Decls[0].Items[1].Declar.Name)
	assert.True(t, tu.Decls[0].Items[1].Declar.Type.IsPointer())
	assert.Equal(t, "c", tu.Decls[0].Items[2].Declar.Name)
	assert.True(t, tu.Decls[0].Items[2].Declar.Type.IsArray())
}
