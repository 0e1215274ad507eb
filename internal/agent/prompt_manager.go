package agent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// RolePrompts are the fixed system prompts of the three stages.
type RolePrompts struct {
	Analyst   string
	Architect string
	Developer string
}

// PromptManager loads persona files from a directory. Prompts are read on
// first use and kept for the life of the process.
type PromptManager struct {
	Directory string
	Analyst   string
	Architect string
	Developer string

	mu     sync.Mutex
	loaded *RolePrompts
}

func NewPromptManager(dir, analyst, architect, developer string) *PromptManager {
	return &PromptManager{
		Directory: dir,
		Analyst:   analyst,
		Architect: architect,
		Developer: developer,
	}
}

// Prompts returns the cached role prompts, loading them on the first call.
// A failed load is not cached, so the next call retries it.
func (pm *PromptManager) Prompts() (RolePrompts, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.loaded != nil {
		return *pm.loaded, nil
	}

	var p RolePrompts
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{pm.Analyst, &p.Analyst},
		{pm.Architect, &p.Architect},
		{pm.Developer, &p.Developer},
	} {
		prompt, err := pm.load(f.name)
		if err != nil {
			return RolePrompts{}, err
		}
		*f.dst = prompt
	}
	pm.loaded = &p
	return p, nil
}

func (pm *PromptManager) load(name string) (string, error) {
	path := filepath.Join(pm.Directory, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read persona %s: %w", path, err)
	}
	prompt, err := ParsePersona(string(data))
	if err != nil {
		return "", fmt.Errorf("persona %s: %w", path, err)
	}
	return prompt, nil
}

var yamlBlock = regexp.MustCompile("(?s)```yaml(.*?)```")

type personaFile struct {
	Persona *struct {
		Role     string `yaml:"role"`
		Style    string `yaml:"style"`
		Identity string `yaml:"identity"`
		Focus    string `yaml:"focus"`
	} `yaml:"persona"`
}

// ParsePersona turns a persona markdown file into a role prompt. Files with
// a ```yaml block are composed from its persona section; plain markdown is
// used verbatim.
func ParsePersona(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", errors.New("empty persona file")
	}

	m := yamlBlock.FindStringSubmatch(content)
	if m == nil {
		return content, nil
	}

	var f personaFile
	if err := yaml.Unmarshal([]byte(m[1]), &f); err != nil {
		return "", fmt.Errorf("invalid yaml block: %w", err)
	}
	if f.Persona == nil {
		return "", errors.New("missing persona section")
	}

	return fmt.Sprintf(`Your persona:
Role: %s
Style: %s
Identity: %s
Focus: %s

Your task is to respond to the user's request based on this persona. Do not deviate from this role.`,
		f.Persona.Role, f.Persona.Style, f.Persona.Identity, f.Persona.Focus), nil
}
