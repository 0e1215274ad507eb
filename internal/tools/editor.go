package tools

import (
	"context"
	"encoding/json"
)

// Caller sends one named request to the editor. *godot.Session is the
// production implementation.
type Caller interface {
	Call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error)
}

// EditorCommand forwards a plan command to the editor under its own name.
type EditorCommand struct {
	name        string
	description string
	properties  map[string]any
	required    []string
	caller      Caller
}

func (e *EditorCommand) Name() string {
	return e.name
}

func (e *EditorCommand) Description() string {
	return e.description
}

func (e *EditorCommand) Parameters() map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": e.properties,
	}
	if len(e.required) > 0 {
		schema["required"] = e.required
	}
	return schema
}

func (e *EditorCommand) Invoke(ctx context.Context, params map[string]any) (string, error) {
	if err := requireParams(e, params); err != nil {
		return "", err
	}
	res, err := e.caller.Call(ctx, e.name, params)
	if err != nil {
		return "", err
	}
	if len(res) == 0 || string(res) == "null" {
		return "ok", nil
	}
	return string(res), nil
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

type editorCommand struct {
	name        string
	description string
	properties  map[string]any
	required    []string
}

var editorCommands = []editorCommand{
	{
		name:        "create_node",
		description: "Create a new node in the open scene under parent_path.",
		properties: map[string]any{
			"parent_path": prop("string", "Path of the parent node, e.g. /root/Main"),
			"node_type":   prop("string", "Godot class of the new node, e.g. Label"),
			"node_name":   prop("string", "Name of the new node"),
		},
		required: []string{"parent_path", "node_type", "node_name"},
	},
	{
		name:        "delete_node",
		description: "Delete a node from the open scene.",
		properties:  map[string]any{"node_path": prop("string", "Path of the node to delete")},
		required:    []string{"node_path"},
	},
	{
		name:        "update_node_property",
		description: "Set one property of a node.",
		properties: map[string]any{
			"node_path": prop("string", "Path of the node"),
			"property":  prop("string", "Property name, e.g. text or position"),
			"value":     map[string]any{"description": "New property value"},
		},
		required: []string{"node_path", "property", "value"},
	},
	{
		name:        "get_node_properties",
		description: "Read every property of a node.",
		properties:  map[string]any{"node_path": prop("string", "Path of the node")},
		required:    []string{"node_path"},
	},
	{
		name:        "list_nodes",
		description: "List the children of a node.",
		properties:  map[string]any{"parent_path": prop("string", "Path of the parent node")},
		required:    []string{"parent_path"},
	},
	{
		name:        "create_script",
		description: "Create a GDScript file, optionally attaching it to a node.",
		properties: map[string]any{
			"script_path": prop("string", "res:// path of the script"),
			"content":     prop("string", "Full GDScript source"),
			"node_path":   prop("string", "Node to attach the script to"),
		},
		required: []string{"script_path", "content"},
	},
	{
		name:        "edit_script",
		description: "Replace the content of an existing script.",
		properties: map[string]any{
			"script_path": prop("string", "res:// path of the script"),
			"content":     prop("string", "Full GDScript source"),
		},
		required: []string{"script_path", "content"},
	},
	{
		name:        "get_script",
		description: "Read a script by path or by the node it is attached to.",
		properties: map[string]any{
			"script_path": prop("string", "res:// path of the script"),
			"node_path":   prop("string", "Node whose script to read"),
		},
	},
	{
		name:        "create_scene",
		description: "Create a new scene file with a root node.",
		properties: map[string]any{
			"path":           prop("string", "res:// path of the scene, e.g. res://scenes/main.tscn"),
			"root_node_type": prop("string", "Class of the root node, default Node2D"),
		},
		required: []string{"path"},
	},
	{
		name:        "open_scene",
		description: "Open a scene in the editor.",
		properties:  map[string]any{"path": prop("string", "res:// path of the scene")},
		required:    []string{"path"},
	},
	{
		name:        "save_scene",
		description: "Save the open scene, optionally under a new path.",
		properties:  map[string]any{"path": prop("string", "res:// path to save to")},
	},
	{
		name:        "get_current_scene",
		description: "Describe the scene open in the editor.",
		properties:  map[string]any{},
	},
	{
		name:        "get_project_info",
		description: "Describe the open project.",
		properties:  map[string]any{},
	},
	{
		name:        "create_resource",
		description: "Create a resource file of the given type.",
		properties: map[string]any{
			"resource_type": prop("string", "Godot resource class, e.g. StyleBoxFlat"),
			"resource_path": prop("string", "res:// path of the resource"),
			"properties":    prop("object", "Initial property values"),
		},
		required: []string{"resource_type", "resource_path"},
	},
	{
		name:        "execute_editor_script",
		description: "Run a GDScript snippet inside the editor.",
		properties:  map[string]any{"code": prop("string", "GDScript code to run")},
		required:    []string{"code"},
	},
}

// RegisterEditorCommands registers every editor command on r, forwarding
// through caller.
func RegisterEditorCommands(r *Registry, caller Caller) {
	for _, spec := range editorCommands {
		r.Register(&EditorCommand{
			name:        spec.name,
			description: spec.description,
			properties:  spec.properties,
			required:    spec.required,
			caller:      caller,
		})
	}
}
