package tool

import (
	"fmt"
	"text/template"

	"github.com/hupe1980/agentplay/internal/util"
)

// NewFunctionTool exposes a plain Go function as a tool renderer.
//
// Example:
//
//	balance := NewFunctionTool(
//	  "show_balance",
//	  "Show the Venmo account balance",
//	  []Field{{Name: "access_token", Type: TypeString}},
//	  func(args map[string]any) (string, error) {
//	    return fmt.Sprintf("print(apis.venmo.show_account(access_token=%q))", args["access_token"]), nil
//	  },
//	)
func NewFunctionTool(name, description string, fields []Field, fn RenderFunc) Descriptor {
	return Descriptor{Name: name, Description: description, Fields: fields, Render: fn}
}

// NewTemplateTool builds a tool whose instruction is a text/template over the
// arguments. See util.CompileTemplate for the available helper funcs.
//
// Example template:
//
//	print(apis.venmo.send_money({{kwargs .}}))
func NewTemplateTool(name, description string, fields []Field, tmpl string) (Descriptor, error) {
	t, err := util.CompileTemplate(name, tmpl)
	if err != nil {
		return Descriptor{}, fmt.Errorf("tool %s: parse template: %w", name, err)
	}

	return NewFunctionTool(name, description, fields, templateRenderer(t)), nil
}

// MustTemplateTool is like NewTemplateTool but panics on a bad template.
func MustTemplateTool(name, description string, fields []Field, tmpl string) Descriptor {
	d, err := NewTemplateTool(name, description, fields, tmpl)
	if err != nil {
		panic(err)
	}
	return d
}

func templateRenderer(t *template.Template) RenderFunc {
	return func(args map[string]any) (string, error) {
		if args == nil {
			args = map[string]any{}
		}
		return util.Execute(t, args)
	}
}
