package recipe

import (
	lua "github.com/yuin/gopher-lua"
)

// sandboxedGlobals are removed from every recipe VM. They would let a
// recipe run commands, touch files or load code outside the hook protocol.
var sandboxedGlobals = []string{
	"os", "io", "debug",
	"require", "dofile", "loadfile", "load", "loadstring",
}

// newSandboxedVM creates a Lua state with the sandboxed globals removed.
// string, table and math stay available.
func newSandboxedVM() *lua.LState {
	L := lua.NewState()
	for _, name := range sandboxedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}
