package tools

import (
	"context"
	"fmt"
)

// Launcher runs Godot processes outside the editor session. *godot.Process
// is the production implementation.
type Launcher interface {
	LaunchEditor(ctx context.Context, projectPath string) (string, error)
	RunProject(ctx context.Context, projectPath, scene string) (string, error)
	StopProject() string
	DebugOutput() (string, error)
}

// HeadlessTool is one of the process commands. Which one is decided by
// its name.
type HeadlessTool struct {
	name           string
	launcher       Launcher
	defaultProject string
}

const (
	toolLaunchEditor   = "launch_editor"
	toolRunProject     = "run_project"
	toolStopProject    = "stop_project"
	toolGetDebugOutput = "get_debug_output"
)

// RegisterHeadlessCommands registers the process commands on r. Commands
// that take a project path fall back to defaultProject when the plan
// omits it.
func RegisterHeadlessCommands(r *Registry, launcher Launcher, defaultProject string) {
	for _, name := range []string{toolLaunchEditor, toolRunProject, toolStopProject, toolGetDebugOutput} {
		r.Register(&HeadlessTool{name: name, launcher: launcher, defaultProject: defaultProject})
	}
}

func (h *HeadlessTool) Name() string {
	return h.name
}

func (h *HeadlessTool) Description() string {
	switch h.name {
	case toolLaunchEditor:
		return "Launch the Godot editor for a project."
	case toolRunProject:
		return "Run a Godot project in debug mode, optionally starting a given scene. Replaces any running project."
	case toolStopProject:
		return "Stop the running Godot project."
	default:
		return "Return the captured stdout and stderr of the running project as JSON."
	}
}

func (h *HeadlessTool) Parameters() map[string]any {
	properties := map[string]any{}
	switch h.name {
	case toolLaunchEditor:
		properties["project_path"] = prop("string", "Directory containing project.godot")
	case toolRunProject:
		properties["project_path"] = prop("string", "Directory containing project.godot")
		properties["scene"] = prop("string", "res:// path of the scene to start")
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}
}

func (h *HeadlessTool) Invoke(ctx context.Context, params map[string]any) (string, error) {
	switch h.name {
	case toolLaunchEditor:
		project, err := h.project(params)
		if err != nil {
			return "", err
		}
		return h.launcher.LaunchEditor(ctx, project)
	case toolRunProject:
		project, err := h.project(params)
		if err != nil {
			return "", err
		}
		return h.launcher.RunProject(ctx, project, stringParam(params, "scene"))
	case toolStopProject:
		return h.launcher.StopProject(), nil
	default:
		return h.launcher.DebugOutput()
	}
}

func (h *HeadlessTool) project(params map[string]any) (string, error) {
	if p := stringParam(params, "project_path"); p != "" {
		return p, nil
	}
	if h.defaultProject != "" {
		return h.defaultProject, nil
	}
	return "", fmt.Errorf("missing required parameter %q for %s", "project_path", h.name)
}
