package platform

import (
	lua "github.com/yuin/gopher-lua"
)

// families is the set of is_<family> booleans exposed to recipes.
var families = []string{
	FamilyDebian, FamilyRHEL, FamilyFedora, FamilySUSE,
	FamilyArch, FamilyAlpine, FamilyGentoo,
}

// InjectPlatformTable sets a read-only global "platform" table describing
// info. Call it before running recipe code.
func InjectPlatformTable(L *lua.LState, info *Info) {
	t := L.NewTable()

	L.SetField(t, "os", lua.LString(info.OS))
	L.SetField(t, "arch", lua.LString(info.Arch))
	L.SetField(t, "arch_raw", lua.LString(info.ArchRaw))
	L.SetField(t, "is_linux", lua.LBool(info.IsLinux()))
	L.SetField(t, "is_macos", lua.LBool(info.IsMacOS()))
	L.SetField(t, "is_amd64", lua.LBool(info.IsAMD64()))
	L.SetField(t, "is_arm64", lua.LBool(info.IsARM64()))

	if info.IsLinux() && info.Platform != "" {
		distro := L.NewTable()
		L.SetField(distro, "id", lua.LString(info.Platform))
		L.SetField(distro, "family", lua.LString(info.Family))
		L.SetField(distro, "version", lua.LString(info.Version))
		L.SetField(t, "distro", ReadOnly(L, distro, "platform.distro"))
	}

	for _, family := range families {
		L.SetField(t, "is_"+family, lua.LBool(info.InFamily(family)))
	}

	// when(cond, value) returns value if cond holds, nil otherwise.
	L.SetField(t, "when", L.NewFunction(func(L *lua.LState) int {
		if L.CheckBool(1) {
			L.Push(L.Get(2))
		} else {
			L.Push(lua.LNil)
		}
		return 1
	}))

	L.SetGlobal("platform", ReadOnly(L, t, "platform"))
}

// ReadOnly wraps table in an empty proxy whose metatable forwards reads and
// rejects writes. name appears in the error raised on a write.
func ReadOnly(L *lua.LState, table *lua.LTable, name string) *lua.LTable {
	mt := L.NewTable()
	L.SetField(mt, "__index", table)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("%s is read-only", name)
		return 0
	}))
	L.SetField(mt, "__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)
	return proxy
}
