package core

import "fmt"

// FieldKind enumerates the value types a schema field can declare.
type FieldKind int

const (
	KindString FieldKind = iota
	KindBool
	KindInt
	KindFloat
	KindDate
	KindDateTime
	KindEnum
	KindList
)

var fieldKindNames = map[FieldKind]string{
	KindString:   "string",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindDate:     "date",
	KindDateTime: "datetime",
	KindEnum:     "enum",
	KindList:     "list",
}

func (k FieldKind) String() string {
	if name, ok := fieldKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("FieldKind(%d)", int(k))
}

// FieldType is a field's declared type. Enum carries the allowed values for
// KindEnum; Elem is the element type for KindList.
type FieldType struct {
	Kind FieldKind
	Enum []string
	Elem *FieldType
}

// Common field types.
var (
	TypeString   = FieldType{Kind: KindString}
	TypeBool     = FieldType{Kind: KindBool}
	TypeInt      = FieldType{Kind: KindInt}
	TypeFloat    = FieldType{Kind: KindFloat}
	TypeDate     = FieldType{Kind: KindDate}
	TypeDateTime = FieldType{Kind: KindDateTime}
)

// EnumOf returns a string enumeration type.
func EnumOf(values ...string) FieldType {
	return FieldType{Kind: KindEnum, Enum: values}
}

// ListOf returns a homogeneous list type.
func ListOf(elem FieldType) FieldType {
	return FieldType{Kind: KindList, Elem: &elem}
}

func (t FieldType) String() string {
	switch t.Kind {
	case KindEnum:
		return fmt.Sprintf("enum%v", t.Enum)
	case KindList:
		if t.Elem == nil {
			return "list"
		}
		return "list[" + t.Elem.String() + "]"
	default:
		return t.Kind.String()
	}
}

// RefKind marks fields whose values name tables or columns, so editors can
// offer pickers without special-casing field names.
type RefKind int

const (
	RefNone RefKind = iota
	RefTable
	RefColumn
)

// FieldRef annotates a field as a table or column reference. For RefColumn,
// TableField names the sibling field that selects the table the column belongs to.
type FieldRef struct {
	Kind       RefKind
	TableField string
}

// Field is a single declared parameter of an operation kind.
type Field struct {
	Name        string
	Title       string
	Description string
	Type        FieldType
	Default     any
	HasDefault  bool
	Ref         FieldRef
}

// NewField declares a required field of the given type.
func NewField(name, title string, t FieldType) Field {
	return Field{Name: name, Title: title, Type: t}
}

// StringField declares a required string field.
func StringField(name, title string) Field { return NewField(name, title, TypeString) }

// BoolField declares a required boolean field.
func BoolField(name, title string) Field { return NewField(name, title, TypeBool) }

// IntField declares a required integer field.
func IntField(name, title string) Field { return NewField(name, title, TypeInt) }

// FloatField declares a required float field.
func FloatField(name, title string) Field { return NewField(name, title, TypeFloat) }

// EnumField declares a required enumeration field.
func EnumField(name, title string, values ...string) Field {
	return NewField(name, title, EnumOf(values...))
}

// TableField declares a string field that names a table.
func TableField(name, title string) Field {
	f := NewField(name, title, TypeString)
	f.Ref = FieldRef{Kind: RefTable}
	return f
}

// ColumnField declares a string field that names a column of the table
// selected by tableField.
func ColumnField(name, title, tableField string) Field {
	f := NewField(name, title, TypeString)
	f.Ref = FieldRef{Kind: RefColumn, TableField: tableField}
	return f
}

// ColumnsField declares a list of column names of the table selected by tableField.
func ColumnsField(name, title, tableField string) Field {
	f := NewField(name, title, ListOf(TypeString))
	f.Ref = FieldRef{Kind: RefColumn, TableField: tableField}
	return f
}

// WithDefault returns a copy of the field with a default value, making it optional.
func (f Field) WithDefault(v any) Field {
	f.Default = v
	f.HasDefault = true
	return f
}

// WithDescription returns a copy of the field with a description.
func (f Field) WithDescription(desc string) Field {
	f.Description = desc
	return f
}

// Required reports whether a value must be supplied for the field.
func (f Field) Required() bool {
	return !f.HasDefault
}

// Schema is the ordered set of fields an operation kind declares.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema builds a schema. It panics on duplicate field names since
// schemas are declared statically alongside operation kinds.
func NewSchema(fields ...Field) *Schema {
	s := &Schema{fields: fields, index: make(map[string]int, len(fields))}
	for i, f := range fields {
		if _, dup := s.index[f.Name]; dup {
			panic(fmt.Sprintf("core: duplicate schema field %q", f.Name))
		}
		s.index[f.Name] = i
	}
	return s
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []Field {
	if s == nil {
		return nil
	}
	return append([]Field(nil), s.fields...)
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}
