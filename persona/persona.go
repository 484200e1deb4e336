// Package persona holds the standing instruction sent with every completion
// request and the reply used when the provider returns no text.
package persona

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type Persona struct {
	Name              string `yaml:"name"`
	SystemInstruction string `yaml:"system_instruction"`
	FallbackReply     string `yaml:"fallback_reply"`
}

// Default returns the built-in persona.
func Default() Persona {
	p, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("persona: embedded default is invalid: %v", err))
	}
	return p
}

// Load reads a persona file. An empty path yields the built-in persona.
// Fields missing from the file keep their built-in value.
func Load(path string) (Persona, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("persona: read %s: %w", path, err)
	}
	p, err := Parse(b)
	if err != nil {
		return Persona{}, fmt.Errorf("persona: %s: %w", path, err)
	}
	return p.withDefaults(Default()), nil
}

// Parse decodes a persona document. The instruction is kept verbatim.
func Parse(b []byte) (Persona, error) {
	var p Persona
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Persona{}, err
	}
	if strings.TrimSpace(p.SystemInstruction) == "" && strings.TrimSpace(p.FallbackReply) == "" {
		return Persona{}, fmt.Errorf("empty persona")
	}
	return p, nil
}

func (p Persona) withDefaults(def Persona) Persona {
	if strings.TrimSpace(p.Name) == "" {
		p.Name = def.Name
	}
	if strings.TrimSpace(p.SystemInstruction) == "" {
		p.SystemInstruction = def.SystemInstruction
	}
	if strings.TrimSpace(p.FallbackReply) == "" {
		p.FallbackReply = def.FallbackReply
	}
	return p
}
