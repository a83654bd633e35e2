package mcp

// GetStatusInput is the input for the get_status tool.
type GetStatusInput struct{}

// GetTreeInput is the input for the get_tree tool.
type GetTreeInput struct {
	Workspace string `json:"workspace,omitempty" jsonschema:"Workspace name; when set only that workspace subtree is returned"`
}

// WindowInput names a window by native handle.
type WindowInput struct {
	Window uint32 `json:"window" jsonschema:"Native window handle as shown in get_tree"`
}

// WindowOutput reports the outcome of a window command.
type WindowOutput struct {
	Window uint32 `json:"window"`
	Action string `json:"action"`
}

// RedrawInput is the input for the redraw tool.
type RedrawInput struct{}

// ActionInput is the input for the run_action tool.
type ActionInput struct {
	Action string `json:"action" jsonschema:"Action name: minimize, restore_all, next_workspace, prev_workspace or redraw"`
}

// ActionOutput reports the action that ran.
type ActionOutput struct {
	Action string `json:"action"`
}
