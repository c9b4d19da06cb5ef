package types

// Builtins holds the preconstructed types the analyzer seeds before any
// user code loads. The checker declares these names directly in the
// global scope; there is no builtins source file, and a user declaration
// of one of these names does not bind to the preconstructed instance.
type Builtins struct {
	Type   *Type // the meta-type `type` itself
	Void   *Type
	Size   *Type
	USize  *Type
	I8, U8 *Type
	I16, U16 *Type
	I32, U32 *Type
	I64, U64 *Type
	F16, F32, F64 *Type
	Bool   *Type
	Array  *Type // generic Array<T>
	String *Type // Array<u8>

	ArrayParam *GenericParamMarker
}

// NewBuiltins constructs the full builtin type set. The analyzer's
// builtins pass injects these into the global scope before any user
// namespace is populated.
func NewBuiltins() *Builtins {
	b := &Builtins{
		Void:  &Type{Kind: KindVoid, Name: "void"},
		Bool:  &Type{Kind: KindBool, Name: "bool"},
		I8:    NewIntegral("i8", 8, true),
		U8:    NewIntegral("u8", 8, false),
		I16:   NewIntegral("i16", 16, true),
		U16:   NewIntegral("u16", 16, false),
		I32:   NewIntegral("i32", 32, true),
		U32:   NewIntegral("u32", 32, false),
		I64:   NewIntegral("i64", 64, true),
		U64:   NewIntegral("u64", 64, false),
		Size:  NewIntegral("size_t", 64, true),
		USize: NewIntegral("usize_t", 64, false),
		F16:   NewFloat("f16", 16),
		F32:   NewFloat("f32", 32),
		F64:   NewFloat("f64", 64),
	}
	b.Type = &Type{Kind: KindComposed, Name: "type"}

	arrayParams := NewGenericParamList()
	tMarker := arrayParams.Declare("T")
	b.ArrayParam = tMarker
	elemT := MarkerType(tMarker)

	members := NewMembers()
	members.Set("length", b.USize)

	array := &Type{
		Kind:          KindComposed,
		Name:          "Array",
		IsRef:         true,
		GenericParams: arrayParams,
		Instance:      members,
		ReadOnly:      map[string]bool{"length": true},
		Indexable: &Indexable{
			Index:   []*Type{b.USize},
			Element: elemT,
		},
	}
	b.Array = array
	b.String = array.Instantiate(map[string]*Type{"T": b.U8})
	b.String.Name = "string"

	return b
}

// IsIntegral reports whether t is one of the fixed-width integral builtins.
func (t *Type) IsIntegral() bool { return t.Kind == KindIntegral }

// IsFloat reports whether t is one of the floating-point builtins.
func (t *Type) IsFloat() bool { return t.Kind == KindFloat }

// IsNumeric reports whether t is integral or floating point.
func (t *Type) IsNumeric() bool { return t.IsIntegral() || t.IsFloat() }
