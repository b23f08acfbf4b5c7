package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/guardgate/guard-agent/internal/models"
)

// ParseError reports that a generated text did not conform to the requested
// schema. Raw carries the last raw text for caller inspection.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("generated output does not match schema: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Validator holds a declared schema compiled for validation.
type Validator struct {
	declared models.Schema
	resolved *jsonschema.Resolved
}

// Compile translates a declared schema into a resolved JSON Schema.
func Compile(s models.Schema) (*Validator, error) {
	if len(s.Fields) == 0 {
		return nil, fmt.Errorf("schema %q has no fields", s.Name)
	}

	js := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(s.Fields)),
	}

	for _, f := range s.Fields {
		prop, err := fieldSchema(f)
		if err != nil {
			return nil, fmt.Errorf("schema %q: %w", s.Name, err)
		}
		js.Properties[f.Name] = prop
		if f.Required {
			js.Required = append(js.Required, f.Name)
		}
	}

	resolved, err := js.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema %q: %w", s.Name, err)
	}

	return &Validator{declared: s, resolved: resolved}, nil
}

func fieldSchema(f models.SchemaField) (*jsonschema.Schema, error) {
	switch f.Type {
	case "string", "number", "integer", "boolean":
	default:
		return nil, fmt.Errorf("field %q has unsupported type %q", f.Name, f.Type)
	}

	prop := &jsonschema.Schema{
		Type:        f.Type,
		Description: f.Description,
		Minimum:     f.Minimum,
		Maximum:     f.Maximum,
	}

	for _, e := range f.Enum {
		prop.Enum = append(prop.Enum, e)
	}

	return prop, nil
}

// Parse checks a raw generated text against the schema. It strips markdown
// code fences before unmarshaling. Failure returns a *ParseError carrying raw.
func (v *Validator) Parse(raw string) (map[string]any, error) {
	content := StripCodeFence(raw)

	var value map[string]any
	if err := json.Unmarshal([]byte(content), &value); err != nil {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("not a JSON object: %w", err)}
	}

	if err := v.resolved.Validate(value); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}

	return value, nil
}

// Instructions renders the schema as prompt text asking the model for a
// single conforming JSON object.
func (v *Validator) Instructions() string {
	var b strings.Builder
	b.WriteString("Respond with a single JSON object and nothing else. Fields:\n")

	for _, f := range v.declared.Fields {
		b.WriteString(fmt.Sprintf("- %q (%s", f.Name, f.Type))
		if f.Required {
			b.WriteString(", required")
		}
		if f.Minimum != nil {
			b.WriteString(fmt.Sprintf(", minimum %g", *f.Minimum))
		}
		if f.Maximum != nil {
			b.WriteString(fmt.Sprintf(", maximum %g", *f.Maximum))
		}
		if len(f.Enum) > 0 {
			b.WriteString(", one of " + strings.Join(f.Enum, "|"))
		}
		b.WriteString(")")
		if f.Description != "" {
			b.WriteString(": " + f.Description)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// StripCodeFence removes markdown code block formatting if present
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		firstNewline := strings.Index(content, "\n")
		if firstNewline == -1 {
			return content
		}

		closingBackticks := strings.LastIndex(content, "```")
		if closingBackticks == -1 || closingBackticks <= firstNewline {
			return content
		}

		content = content[firstNewline+1 : closingBackticks]
		content = strings.TrimSpace(content)
	}

	return content
}
