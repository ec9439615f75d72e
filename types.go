package titocc

import "fmt"

// TypeKind tags the Type sum type.
type TypeKind int

const (
	TInt TypeKind = iota
	TVoid
	TPointer
	TArray
	TFunction
)

// Type is a tagged variant: Int{signed}, Void, Pointer(Elem),
// Array(Elem,Len), Function(Ret,Params,Variadic). Every scalar is one
// word (4 bytes); array size is elem size * length.
type Type struct {
	Kind TypeKind

	// TInt
	Signed bool

	// TPointer / TArray: element type
	Elem *Type

	// TArray: length; -1 means unknown (incomplete array, as in a
	// tentative `extern int x[];`).
	Len int

	// TFunction
	Ret      *Type
	Params   []*Type
	Variadic bool
}

const WordSize = 4

var (
	IntType  = &Type{Kind: TInt, Signed: true}
	UintType = &Type{Kind: TInt, Signed: false}
	VoidType = &Type{Kind: TVoid}
)

func PointerTo(elem *Type) *Type  { return &Type{Kind: TPointer, Elem: elem} }
func ArrayOf(elem *Type, n int) *Type {
	return &Type{Kind: TArray, Elem: elem, Len: n}
}
func FuncType(ret *Type, params []*Type, variadic bool) *Type {
	return &Type{Kind: TFunction, Ret: ret, Params: params, Variadic: variadic}
}

func (t *Type) IsInt() bool      { return t != nil && t.Kind == TInt }
func (t *Type) IsUnsigned() bool { return t.IsInt() && !t.Signed }
func (t *Type) IsPointer() bool  { return t != nil && t.Kind == TPointer }
func (t *Type) IsArray() bool    { return t != nil && t.Kind == TArray }
func (t *Type) IsFunction() bool { return t != nil && t.Kind == TFunction }
func (t *Type) IsVoid() bool     { return t != nil && t.Kind == TVoid }

// IsScalar reports whether t is an int or a pointer - the set of
// types arithmetic/comparison/branch conditions operate on.
func (t *Type) IsScalar() bool { return t.IsInt() || t.IsPointer() }

// Size returns the size in bytes of a complete type. Arrays of
// unknown length (incomplete, tentative) have no defined size until
// completed.
func (t *Type) Size() int {
	switch t.Kind {
	case TInt, TPointer:
		return WordSize
	case TArray:
		if t.Len < 0 {
			return 0
		}
		return t.Elem.Size() * t.Len
	default:
		return 0
	}
}

// Complete reports whether the type has a known size (used to reject
// incomplete-array objects that are never given a definition).
func (t *Type) Complete() bool {
	if t.Kind == TArray {
		return t.Len >= 0 && t.Elem.Complete()
	}
	return t.Kind != TVoid || true // void is "complete" as a function return/param marker
}

// Decay converts array-to-pointer-to-element and function-to-
// pointer-to-function, per the decay rule. Any other type is
// returned unchanged.
func (t *Type) Decay() *Type {
	switch t.Kind {
	case TArray:
		return PointerTo(t.Elem)
	case TFunction:
		return PointerTo(t)
	default:
		return t
	}
}

// AdjustParam applies the parameter-type adjustment a prototype
// applies to each declared parameter: array parameters decay to
// pointer-to-element, function parameters decay to pointer-to-
// function (test f5 in test_function_pointers.c).
func (t *Type) AdjustParam() *Type {
	switch t.Kind {
	case TArray:
		return PointerTo(t.Elem)
	case TFunction:
		return PointerTo(t)
	default:
		return t
	}
}

// Equal performs structural type comparison, as required for symbol
// merge compatibility checks and typed-AST conversion insertion.
// An array with unknown length is compatible with any length of the
// same element type (so `extern int x[];` completes with
// `int x[20];`).
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case TInt:
		return t.Signed == o.Signed
	case TVoid:
		return true
	case TPointer:
		return t.Elem.Equal(o.Elem)
	case TArray:
		if !t.Elem.Equal(o.Elem) {
			return false
		}
		if t.Len < 0 || o.Len < 0 {
			return true
		}
		return t.Len == o.Len
	case TFunction:
		if t.Variadic != o.Variadic || len(t.Params) != len(o.Params) {
			return false
		}
		if !t.Ret.Equal(o.Ret) {
			return false
		}
		for i := range t.Params {
			if !t.Params[i].Equal(o.Params[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Merge returns the most-defined of two compatible types (e.g. an
// array with a known length completes one with an unknown length),
// or (nil, false) if t and o are not compatible.
func (t *Type) Merge(o *Type) (*Type, bool) {
	if !t.Equal(o) {
		return nil, false
	}
	if t.Kind == TArray && t.Len < 0 && o.Len >= 0 {
		return o, true
	}
	return t, true
}

func (t *Type) String() string {
	switch t.Kind {
	case TInt:
		if t.Signed {
			return "int"
		}
		return "unsigned"
	case TVoid:
		return "void"
	case TPointer:
		return fmt.Sprintf("%s*", t.Elem)
	case TArray:
		if t.Len < 0 {
			return fmt.Sprintf("%s[]", t.Elem)
		}
		return fmt.Sprintf("%s[%d]", t.Elem, t.Len)
	case TFunction:
		return fmt.Sprintf("%s(...)->%s", t.Params, t.Ret)
	default:
		return "?"
	}
}

// usualArithmeticType implements the usual arithmetic conversions for
// a pair of scalar operand types: mixed int/unsigned becomes
// unsigned, two signed stay signed.
func usualArithmeticType(a, b *Type) *Type {
	if a.IsUnsigned() || b.IsUnsigned() {
		return UintType
	}
	return IntType
}
