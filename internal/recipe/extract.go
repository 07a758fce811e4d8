package recipe

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
)

const (
	hookCompile       = "compile"
	hookInstall       = "install"
	hookPostInstall   = "post_install"
	hookPostUninstall = "post_uninstall"
	hookStart         = "start"
	hookStop          = "stop"
)

var allHooks = []string{
	hookCompile, hookInstall, hookPostInstall, hookPostUninstall, hookStart, hookStop,
}

// extractDefinition reads the metadata fields of a parts table.
func extractDefinition(table *lua.LTable) (parts.Definition, error) {
	var def parts.Definition
	fields := []struct {
		key string
		dst *string
	}{
		{"name", &def.Name},
		{"version", &def.Version},
		{"description", &def.Description},
		{"source_url", &def.SourceURL},
		{"source_sha1", &def.SourceSHA1},
		{"source_filetype", &def.SourceFiletype},
	}
	for _, f := range fields {
		v := table.RawGetString(f.key)
		switch v.Type() {
		case lua.LTNil:
		case lua.LTString:
			*f.dst = v.String()
		default:
			return def, fmt.Errorf("%s: expected string, got %s", f.key, v.Type())
		}
	}

	deps, err := stringList(table.RawGetString("depends_on"))
	if err != nil {
		return def, fmt.Errorf("depends_on: %w", err)
	}
	def.Dependencies = deps
	return def, nil
}

// stringList decodes nil, a single string, or an array of strings.
func stringList(v lua.LValue) ([]string, error) {
	switch v := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LString:
		return []string{string(v)}, nil
	case *lua.LTable:
		out := make([]string, 0, v.Len())
		for i := 1; i <= v.Len(); i++ {
			s, ok := v.RawGetInt(i).(lua.LString)
			if !ok {
				return nil, fmt.Errorf("element %d: expected string, got %s", i, v.RawGetInt(i).Type())
			}
			out = append(out, string(s))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %s", v.Type())
	}
}

func checkHookType(table *lua.LTable, hook string) error {
	switch v := table.RawGetString(hook); v.Type() {
	case lua.LTNil, lua.LTTable, lua.LTFunction:
		return nil
	default:
		return fmt.Errorf("%s: expected list or function, got %s", hook, v.Type())
	}
}

// decodeCommands turns a hook value into argv vectors. A list whose first
// element is a string is a single command; otherwise every element must be
// a command. Numbers are accepted as arguments.
func decodeCommands(v lua.LValue) ([][]string, error) {
	switch v.Type() {
	case lua.LTNil:
		return nil, nil
	case lua.LTTable:
	default:
		return nil, fmt.Errorf("expected list of commands, got %s", v.Type())
	}

	list := v.(*lua.LTable)
	if list.Len() == 0 {
		return nil, nil
	}
	if list.RawGetInt(1).Type() == lua.LTString {
		argv, err := decodeArgv(list)
		if err != nil {
			return nil, err
		}
		return [][]string{argv}, nil
	}

	commands := make([][]string, 0, list.Len())
	for i := 1; i <= list.Len(); i++ {
		cmd, ok := list.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("command %d: expected list, got %s", i, list.RawGetInt(i).Type())
		}
		argv, err := decodeArgv(cmd)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		commands = append(commands, argv)
	}
	return commands, nil
}

func decodeArgv(t *lua.LTable) ([]string, error) {
	if t.Len() == 0 {
		return nil, fmt.Errorf("empty command")
	}
	argv := make([]string, 0, t.Len())
	for i := 1; i <= t.Len(); i++ {
		switch arg := t.RawGetInt(i).(type) {
		case lua.LString:
			argv = append(argv, string(arg))
		case lua.LNumber:
			argv = append(argv, arg.String())
		default:
			return nil, fmt.Errorf("argument %d: expected string, got %s", i, arg.Type())
		}
	}
	return argv, nil
}
