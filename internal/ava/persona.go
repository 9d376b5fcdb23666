package ava

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed persona.yml
var personaFile []byte

type keywordRule struct {
	Command string   `yaml:"command"`
	Words   []string `yaml:"words"`
}

// Persona holds every fixed text Ava can answer with.
type Persona struct {
	Name             string            `yaml:"name"`
	SystemPrompt     string            `yaml:"system_prompt"`
	Greeting         string            `yaml:"greeting"`
	Fallback         string            `yaml:"fallback"`
	InjectionWarning string            `yaml:"injection_warning"`
	Commands         map[string]string `yaml:"commands"`
	Keywords         []keywordRule     `yaml:"keywords"`
}

// LoadPersona parses the embedded persona file.
func LoadPersona() (*Persona, error) {
	return ParsePersona(personaFile)
}

// ParsePersona parses a persona document and checks that keyword rules only
// point at defined commands.
func ParsePersona(data []byte) (*Persona, error) {
	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse persona: %w", err)
	}
	if p.SystemPrompt == "" || p.Fallback == "" {
		return nil, fmt.Errorf("persona is missing the system prompt or fallback text")
	}
	for _, rule := range p.Keywords {
		if _, ok := p.Commands[rule.Command]; !ok {
			return nil, fmt.Errorf("keyword rule points at unknown command %q", rule.Command)
		}
	}
	return &p, nil
}

// Command returns the canned answer for message, matching command names
// exactly first and keywords second.
func (p *Persona) Command(message string) (string, bool) {
	command := strings.ToLower(strings.TrimSpace(message))

	if text, ok := p.Commands[command]; ok {
		return text, true
	}
	for _, rule := range p.Keywords {
		for _, word := range rule.Words {
			if strings.Contains(command, word) {
				return p.Commands[rule.Command], true
			}
		}
	}
	return "", false
}
