package genai

import "fmt"

// SystemInstruction is the closed set of shapes a system prompt can take.
// Providers and config loaders have produced three shapes in practice: a
// plain string, an object with a single text field, and a structured object
// with a parts sequence. Each variant knows its own prompt length.
type SystemInstruction interface {
	systemInstruction()
	// PromptLength returns the character length of the instruction text.
	PromptLength() int
	// PromptText returns the flattened instruction text.
	PromptText() string
}

// SystemText is a system prompt supplied as a plain string.
type SystemText string

func (SystemText) systemInstruction() {}

func (s SystemText) PromptLength() int { return len(string(s)) }

func (s SystemText) PromptText() string { return string(s) }

// SystemParts is a system prompt supplied as a structured parts sequence;
// text fields are concatenated.
type SystemParts []*Part

func (SystemParts) systemInstruction() {}

func (s SystemParts) PromptText() string {
	var text string
	for _, p := range s {
		if p != nil {
			text += p.Text
		}
	}
	return text
}

func (s SystemParts) PromptLength() int { return len(s.PromptText()) }

// ParseSystemInstruction normalizes the shapes encountered in configuration
// into a SystemInstruction variant. Supported inputs: string, *Part (object
// with a text field), []*Part and *Content (parts sequence). nil yields nil.
func ParseSystemInstruction(v any) (SystemInstruction, error) {
	switch si := v.(type) {
	case nil:
		return nil, nil
	case SystemInstruction:
		return si, nil
	case string:
		return SystemText(si), nil
	case *Part:
		if si == nil {
			return nil, nil
		}
		return SystemParts{si}, nil
	case []*Part:
		return SystemParts(si), nil
	case *Content:
		if si == nil {
			return nil, nil
		}
		return SystemParts(si.Parts), nil
	default:
		return nil, fmt.Errorf("unsupported system instruction shape %T", v)
	}
}

// FunctionDeclaration describes one callable function exposed to the model.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolDeclaration is the closed set of tool-declaration shapes. Upstream
// configs have carried either a functionDeclarations list or a bare named
// built-in tool; each shape gets its own variant and parser instead of
// optional-property probing at call sites.
type ToolDeclaration interface {
	toolDeclaration()
	// ToolNames lists the callable names this declaration contributes.
	ToolNames() []string
}

// FunctionTool declares a set of callable functions.
type FunctionTool struct {
	Declarations []FunctionDeclaration
}

func (FunctionTool) toolDeclaration() {}

func (t FunctionTool) ToolNames() []string {
	names := make([]string, 0, len(t.Declarations))
	for _, d := range t.Declarations {
		names = append(names, d.Name)
	}
	return names
}

// BuiltinTool declares a provider-native tool referenced by name only.
type BuiltinTool struct {
	Name string
}

func (BuiltinTool) toolDeclaration()      {}
func (t BuiltinTool) ToolNames() []string { return []string{t.Name} }

// ParseToolDeclaration normalizes a raw declaration object into a variant.
func ParseToolDeclaration(raw map[string]any) (ToolDeclaration, error) {
	if decls, ok := raw["functionDeclarations"].([]any); ok {
		tool := FunctionTool{}
		for _, d := range decls {
			m, ok := d.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("malformed function declaration %v", d)
			}
			fd := FunctionDeclaration{}
			if name, ok := m["name"].(string); ok {
				fd.Name = name
			}
			if desc, ok := m["description"].(string); ok {
				fd.Description = desc
			}
			if params, ok := m["parameters"].(map[string]any); ok {
				fd.Parameters = params
			}
			if fd.Name == "" {
				return nil, fmt.Errorf("function declaration missing name")
			}
			tool.Declarations = append(tool.Declarations, fd)
		}
		return tool, nil
	}
	if name, ok := raw["name"].(string); ok && name != "" {
		return BuiltinTool{Name: name}, nil
	}
	return nil, fmt.Errorf("unrecognized tool declaration shape")
}

// GenerateContentConfig carries generation parameters applied to every
// request a session sends.
type GenerateContentConfig struct {
	SystemInstruction SystemInstruction
	Tools             []ToolDeclaration
	Temperature       *float64
	MaxOutputTokens   int
}
