package agent

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const analystFile = "# Game Analyst\n\n```yaml\nagent:\n  name: Ava\npersona:\n  role: Game Analyst\n  style: Precise\n  identity: Turns ideas into user stories\n  focus: Player value\n```\n"

func writePersonas(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestPromptManager_Prompts(t *testing.T) {
	dir := writePersonas(t, map[string]string{
		"analyst.md":   analystFile,
		"architect.md": "You are a Godot architect.",
		"developer.md": "Reply with a JSON array of commands.",
	})

	pm := NewPromptManager(dir, "analyst.md", "architect.md", "developer.md")
	p, err := pm.Prompts()
	require.NoError(t, err)

	assert.Contains(t, p.Analyst, "Role: Game Analyst\nStyle: Precise\nIdentity: Turns ideas into user stories\nFocus: Player value")
	assert.Contains(t, p.Analyst, "Do not deviate from this role.")
	assert.Equal(t, "You are a Godot architect.", p.Architect)
	assert.Equal(t, "Reply with a JSON array of commands.", p.Developer)
}

func TestPromptManager_Cached(t *testing.T) {
	dir := writePersonas(t, map[string]string{
		"a.md": "analyst", "b.md": "architect", "c.md": "developer",
	})
	pm := NewPromptManager(dir, "a.md", "b.md", "c.md")

	first, err := pm.Prompts()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("changed"), 0644))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := pm.Prompts()
			assert.NoError(t, err)
			assert.Equal(t, first, p)
		}()
	}
	wg.Wait()
}

func TestPromptManager_FailedLoadNotCached(t *testing.T) {
	dir := writePersonas(t, map[string]string{"a.md": "analyst", "b.md": "architect"})
	pm := NewPromptManager(dir, "a.md", "b.md", "c.md")

	_, err := pm.Prompts()
	assert.ErrorContains(t, err, "c.md")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.md"), []byte("developer"), 0644))
	p, err := pm.Prompts()
	require.NoError(t, err)
	assert.Equal(t, "developer", p.Developer)
}

func TestParsePersona_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty", "  \n", "empty persona file"},
		{"no persona section", "```yaml\nagent:\n  name: x\n```", "missing persona section"},
		{"bad yaml", "```yaml\npersona: [unclosed\n```", "invalid yaml block"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePersona(tt.content)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
