package recipe

import "fmt"

// ParseError reports a recipe that cannot be evaluated or is malformed.
type ParseError struct {
	Recipe  string // file path, or "<string>"
	Message string
	Detail  string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Recipe, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Recipe, e.Message, e.Detail)
}

// HookError reports a hook whose Lua evaluation failed or returned
// something other than commands.
type HookError struct {
	Package string
	Hook    string
	Detail  string
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s: hook %s: %s", e.Package, e.Hook, e.Detail)
}
