package domain

// Tool describes a function a bot may call.
type Tool struct {
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// PermissionStatus tracks whether the user allowed a tool call to run.
type PermissionStatus string

const (
	PermissionPending  PermissionStatus = "pending"
	PermissionApproved PermissionStatus = "approved"
	PermissionDenied   PermissionStatus = "denied"
)

// ToolCall is a request from a bot to run a tool.
type ToolCall struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Arguments        map[string]any   `json:"arguments"`
	PermissionStatus PermissionStatus `json:"permission_status,omitempty"`
}

// Status returns the permission status, treating unset as pending.
func (c ToolCall) Status() PermissionStatus {
	if c.PermissionStatus == "" {
		return PermissionPending
	}
	return c.PermissionStatus
}

// ToolResult is the outcome of a tool call.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}
