package godot

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// maxCapturedLines bounds the stdout/stderr kept for get_debug_output.
const maxCapturedLines = 1000

var ErrNoExecutable = errors.New("could not find Godot executable")

// Process owns the Godot child processes started on behalf of plans: the
// one running project and any launched editors.
type Process struct {
	executable string

	mu       sync.Mutex
	resolved string
	running  *exec.Cmd
	output   []string
	errors   []string
}

// NewProcess uses executable (a path or a name on PATH) for every launch.
func NewProcess(executable string) *Process {
	return &Process{executable: executable}
}

// Executable probes the configured binary with --version once and caches
// the result.
func (p *Process) Executable(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolveLocked(ctx)
}

func (p *Process) resolveLocked(ctx context.Context) (string, error) {
	if p.resolved != "" {
		return p.resolved, nil
	}
	if p.executable == "" {
		return "", ErrNoExecutable
	}
	path, err := exec.LookPath(p.executable)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoExecutable, err)
	}
	if out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput(); err != nil {
		return "", fmt.Errorf("%w: %s --version: %v: %s", ErrNoExecutable, path, err, strings.TrimSpace(string(out)))
	}
	p.resolved = path
	return path, nil
}

// LaunchEditor starts the editor for projectPath and does not wait for it.
func (p *Process) LaunchEditor(ctx context.Context, projectPath string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	path, err := p.resolveLocked(ctx)
	if err != nil {
		return "", err
	}
	cmd := exec.Command(path, "-e", "--path", projectPath)
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("launch editor: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return fmt.Sprintf("Launched Godot editor for project: %s", projectPath), nil
}

// RunProject starts projectPath in debug mode, replacing any project
// already running. Output is captured for DebugOutput.
func (p *Process) RunProject(ctx context.Context, projectPath, scene string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	path, err := p.resolveLocked(ctx)
	if err != nil {
		return "", err
	}
	p.stopLocked()

	args := []string{"-d", "--path", projectPath}
	if scene != "" {
		args = append(args, scene)
	}
	// The project outlives the command that started it, so it is not tied
	// to ctx.
	cmd := exec.Command(path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", err
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("run project: %w", err)
	}

	p.running = cmd
	p.output = nil
	p.errors = nil
	var readers sync.WaitGroup
	readers.Add(2)
	go func() { defer readers.Done(); p.capture(cmd, stdout, false) }()
	go func() { defer readers.Done(); p.capture(cmd, stderr, true) }()
	go func() {
		// Wait closes the pipes, so every line must be read first.
		readers.Wait()
		_ = cmd.Wait()
		p.mu.Lock()
		if p.running == cmd {
			p.running = nil
		}
		p.mu.Unlock()
	}()

	msg := fmt.Sprintf("Started project: %s", projectPath)
	if scene != "" {
		msg += fmt.Sprintf(", scene: %s", scene)
	}
	return msg, nil
}

func (p *Process) capture(cmd *exec.Cmd, r io.Reader, isErr bool) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		p.mu.Lock()
		// Lines from a replaced process are dropped.
		if p.running == cmd || p.running == nil {
			if isErr {
				p.errors = appendBounded(p.errors, line)
			} else {
				p.output = appendBounded(p.output, line)
			}
		}
		p.mu.Unlock()
	}
}

func appendBounded(lines []string, line string) []string {
	lines = append(lines, line)
	if len(lines) > maxCapturedLines {
		lines = lines[len(lines)-maxCapturedLines:]
	}
	return lines
}

// StopProject kills the running project, if any.
func (p *Process) StopProject() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopLocked() {
		return "Stopped Godot project"
	}
	return "No active project to stop"
}

func (p *Process) stopLocked() bool {
	if p.running == nil {
		return false
	}
	if p.running.Process != nil {
		_ = p.running.Process.Kill()
	}
	p.running = nil
	return true
}

// Running reports whether a project process is alive.
func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running != nil
}

// DebugOutput returns the captured output as indented JSON.
func (p *Process) DebugOutput() (string, error) {
	p.mu.Lock()
	out := struct {
		Output []string `json:"output"`
		Errors []string `json:"errors"`
	}{
		Output: append([]string{}, p.output...),
		Errors: append([]string{}, p.errors...),
	}
	p.mu.Unlock()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
