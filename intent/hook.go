package intent

// HookedTool is implemented by tools that declare whether intents must be
// classified before they execute.
type HookedTool interface {
	RequiresIntentHook() bool
}

// RequiresIntentHook reports whether v asks for intent classification before
// execution. Values not implementing HookedTool never do.
func RequiresIntentHook(v any) bool {
	h, ok := v.(HookedTool)
	return ok && h.RequiresIntentHook()
}

// HookMarker can be embedded into a tool type to mark it as requiring the hook.
type HookMarker struct{}

// RequiresIntentHook implements HookedTool.
func (HookMarker) RequiresIntentHook() bool { return true }
