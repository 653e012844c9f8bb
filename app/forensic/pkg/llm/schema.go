package llm

// Type 结构化输出的字段类型
type Type string

const (
	TypeObject  Type = "object"
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeArray   Type = "array"
	TypeBoolean Type = "boolean"
)

// Schema 与具体后端无关的响应结构描述。
// gemini 后端把它转换为 genai.Schema，contract 包把它转换为 JSON Schema 做校验。
type Schema struct {
	Type        Type
	Description string
	Enum        []string
	Properties  map[string]*Schema
	// Order 属性的输出顺序，仅 Gemini 后端使用（propertyOrdering）
	Order    []string
	Required []string
	Items    *Schema
	Minimum  *float64
	Maximum  *float64
	Nullable bool
}

// Object 构造对象类型
func Object(props map[string]*Schema, order []string, required ...string) *Schema {
	return &Schema{Type: TypeObject, Properties: props, Order: order, Required: required}
}

// String 构造字符串类型
func String(desc string) *Schema {
	return &Schema{Type: TypeString, Description: desc}
}

// Enum 构造枚举字符串类型
func Enum(desc string, values ...string) *Schema {
	return &Schema{Type: TypeString, Description: desc, Enum: values}
}

// Number 构造带范围的数值类型
func Number(desc string, min, max float64) *Schema {
	return &Schema{Type: TypeNumber, Description: desc, Minimum: &min, Maximum: &max}
}

// Integer 构造带范围的整数类型
func Integer(desc string, min, max float64) *Schema {
	return &Schema{Type: TypeInteger, Description: desc, Minimum: &min, Maximum: &max}
}

// Boolean 构造布尔类型
func Boolean(desc string) *Schema {
	return &Schema{Type: TypeBoolean, Description: desc}
}

// Array 构造数组类型
func Array(desc string, items *Schema) *Schema {
	return &Schema{Type: TypeArray, Description: desc, Items: items}
}

// AsNullable 标记字段可为 null
func (s *Schema) AsNullable() *Schema {
	cp := *s
	cp.Nullable = true
	return &cp
}
