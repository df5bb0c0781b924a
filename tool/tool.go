// Package tool implements the tool registry the agent loop resolves model
// tool calls against. A tool is a name, a description, a typed input schema
// and a renderer that turns validated arguments into an instruction the
// world executor understands.
package tool

import (
	"fmt"

	"github.com/hupe1980/agentplay/internal/util"
	"github.com/hupe1980/agentplay/model"
)

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeRender     = "RENDER_ERROR"
)

// FieldType is the JSON schema type of a tool input field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// Field describes one input of a tool. Fields are required unless Optional.
type Field struct {
	Name        string    `yaml:"name" json:"name"`
	Type        FieldType `yaml:"type" json:"type"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Optional    bool      `yaml:"optional,omitempty" json:"optional,omitempty"`
	Enum        []string  `yaml:"enum,omitempty" json:"enum,omitempty"`
	// Items is the element type of array fields.
	Items FieldType `yaml:"items,omitempty" json:"items,omitempty"`
}

// RenderFunc turns validated arguments into an executable instruction.
type RenderFunc func(args map[string]any) (string, error)

// Descriptor is an immutable tool definition.
type Descriptor struct {
	Name        string
	Description string
	Fields      []Field
	Render      RenderFunc
}

// Parameters returns the JSON schema of the tool's input. Required lists
// exactly the fields that are not optional.
func (d Descriptor) Parameters() map[string]any {
	props := make(map[string]any, len(d.Fields))
	var required []string

	for _, f := range d.Fields {
		typ := f.Type
		if typ == "" {
			typ = TypeString
		}

		prop := map[string]any{"type": string(typ)}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if len(f.Enum) > 0 {
			prop["enum"] = append([]string(nil), f.Enum...)
		}
		if typ == TypeArray {
			items := f.Items
			if items == "" {
				items = TypeString
			}
			prop["items"] = map[string]any{"type": string(items)}
		}

		props[f.Name] = prop
		if !f.Optional {
			required = append(required, f.Name)
		}
	}

	return util.ObjectSchema(props, required)
}

// Definition converts the descriptor into the provider-neutral declaration.
func (d Descriptor) Definition() model.ToolDefinition {
	return model.ToolDefinition{Name: d.Name, Description: d.Description, Parameters: d.Parameters()}
}

// declaredArgs returns the subset of args naming one of the tool's fields.
func (d Descriptor) declaredArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(d.Fields))
	for _, f := range d.Fields {
		if v, ok := args[f.Name]; ok {
			out[f.Name] = v
		}
	}
	return out
}

func (d Descriptor) clone() Descriptor {
	c := d
	c.Fields = make([]Field, len(d.Fields))
	for i, f := range d.Fields {
		f.Enum = append([]string(nil), f.Enum...)
		c.Fields[i] = f
	}
	return c
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur while preparing a tool instruction.
type ToolError struct {
	Tool    string `json:"tool"`    // Name of the tool that failed
	Message string `json:"message"` // Error message
	Code    string `json:"code"`    // Error code for categorization
	Err     error  `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
