package core

// ValueType is the declared type of a pipeline-level parameter.
type ValueType string

const (
	ValueString   ValueType = "string"
	ValueInteger  ValueType = "integer"
	ValueFloat    ValueType = "float"
	ValueDate     ValueType = "date"
	ValueDateTime ValueType = "datetime"
	ValueBoolean  ValueType = "boolean"
)

var valueFieldTypes = map[ValueType]FieldType{
	ValueString:   TypeString,
	ValueInteger:  TypeInt,
	ValueFloat:    TypeFloat,
	ValueDate:     TypeDate,
	ValueDateTime: TypeDateTime,
	ValueBoolean:  TypeBool,
}

// FieldType maps the value type onto the schema type system.
func (v ValueType) FieldType() (FieldType, bool) {
	t, ok := valueFieldTypes[v]
	return t, ok
}

// Valid reports whether v is a known value type.
func (v ValueType) Valid() bool {
	_, ok := valueFieldTypes[v]
	return ok
}

// ParameterSpec declares an external, user-suppliable pipeline parameter.
// Default is text and is converted with the declared type when used.
type ParameterSpec struct {
	Name        string    `json:"name" yaml:"name"`
	Type        ValueType `json:"type" yaml:"type"`
	Description string    `json:"description" yaml:"description"`
	Default     string    `json:"default" yaml:"default"`
	Required    bool      `json:"required" yaml:"required"`
}
