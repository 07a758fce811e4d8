package recipe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
	"github.com/ZebulonRouseFrantzich/parts/internal/platform"
)

// Package is a package defined by a recipe.
type Package struct {
	def    parts.Definition
	tips   string
	origin string
	src    string
	layout parts.Layout
	loader *Loader
}

var _ parts.Package = (*Package)(nil)

func (p *Package) Definition() parts.Definition { return p.def }
func (p *Package) Tips() string                 { return p.tips }

func (p *Package) Compile(ctx context.Context, hc parts.HookContext) error {
	return p.run(ctx, hookCompile, hc)
}

func (p *Package) Install(ctx context.Context, hc parts.HookContext) error {
	return p.run(ctx, hookInstall, hc)
}

func (p *Package) PostInstall(ctx context.Context, hc parts.HookContext) error {
	return p.run(ctx, hookPostInstall, hc)
}

func (p *Package) PostUninstall(ctx context.Context, hc parts.HookContext) error {
	return p.run(ctx, hookPostUninstall, hc)
}

// Commands evaluates a hook against layout without running it.
func (p *Package) Commands(ctx context.Context, hook string, layout parts.Layout) ([][]string, error) {
	var commands [][]string
	err := p.withHook(ctx, hook, layout, func(L *lua.LState, v lua.LValue) error {
		var err error
		commands, err = decodeCommands(v)
		return err
	})
	return commands, err
}

func (p *Package) run(ctx context.Context, hook string, hc parts.HookContext) error {
	commands, err := p.Commands(ctx, hook, hc.Layout)
	if err != nil {
		return err
	}
	if len(commands) > 0 && hc.Runner == nil {
		return &HookError{Package: p.def.String(), Hook: hook, Detail: "no runner configured"}
	}
	for _, argv := range commands {
		if err := hc.Runner.Run(ctx, hc.Dir, hc.Env, argv...); err != nil {
			return fmt.Errorf("%s %s: %w", p.def, hook, err)
		}
	}
	return nil
}

// withHook re-evaluates the recipe, resolves the hook value (calling it
// with the package table when it is a function) and hands it to fn while
// the Lua state is still open.
func (p *Package) withHook(ctx context.Context, hook string, layout parts.Layout, fn func(*lua.LState, lua.LValue) error) error {
	L, table, err := p.loader.eval(ctx, p.origin, p.src)
	if err != nil {
		return err
	}
	defer L.Close()

	v := table.RawGetString(hook)
	if v.Type() == lua.LTFunction {
		if err := L.CallByParam(lua.P{Fn: v, NRet: 1, Protect: true}, p.loader.packageTable(ctx, L, p.def, layout)); err != nil {
			return &HookError{Package: p.def.String(), Hook: hook, Detail: err.Error()}
		}
		v = L.Get(-1)
		L.Pop(1)
	}

	if err := fn(L, v); err != nil {
		return &HookError{Package: p.def.String(), Hook: hook, Detail: err.Error()}
	}
	return nil
}

// packageTable builds the read-only table hook functions receive.
func (l *Loader) packageTable(ctx context.Context, L *lua.LState, def parts.Definition, layout parts.Layout) *lua.LTable {
	t := L.NewTable()
	set := func(key, value string) { L.SetField(t, key, lua.LString(value)) }

	set("name", def.Name)
	set("version", def.Version)
	set("prefix", layout.Prefix)
	for _, dir := range parts.PrefixDirs {
		set(dir, layout.Dir(dir))
	}
	set("info", layout.Info())
	set("man", layout.Man())
	set("doc", layout.Doc())
	set("etc", l.paths.Etc())
	set("var", l.paths.Var())
	for n := 1; n <= 8; n++ {
		section, _ := layout.ManSection(n)
		set("man"+strconv.Itoa(n), section)
	}

	L.SetField(t, "dependency", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		dep, err := l.dependencyResolver().Dependency(ctx, name)
		if err != nil {
			L.RaiseError("dependency %s: %s", name, err.Error())
			return 0
		}
		L.Push(l.packageTable(ctx, L, dep, parts.NewLayout(l.paths.Packages(), dep)))
		return 1
	}))

	return platform.ReadOnly(L, t, "package "+def.Name)
}

// Service is a recipe that declares start or stop hooks.
type Service struct {
	*Package
	processName string
	hasPidFile  bool
}

var _ parts.Controllable = (*Service)(nil)

func (s *Service) Start(ctx context.Context, hc parts.HookContext) error {
	return s.run(ctx, hookStart, hc)
}

func (s *Service) Stop(ctx context.Context, hc parts.HookContext) error {
	return s.run(ctx, hookStop, hc)
}

// Running checks process_name first, then pid_file. A service declaring
// neither is never reported as running.
func (s *Service) Running(ctx context.Context) (bool, error) {
	if s.processName != "" {
		procs, err := process.ProcessesWithContext(ctx)
		if err != nil {
			return false, fmt.Errorf("list processes: %w", err)
		}
		for _, proc := range procs {
			name, err := proc.NameWithContext(ctx)
			if err == nil && name == s.processName {
				return true, nil
			}
		}
		return false, nil
	}

	if !s.hasPidFile {
		return false, nil
	}

	path, err := s.pidFile(ctx)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 32)
	if err != nil || pid <= 0 {
		return false, nil
	}
	return process.PidExistsWithContext(ctx, int32(pid))
}

// pidFile resolves pid_file; relative paths are taken from the prefix.
func (s *Service) pidFile(ctx context.Context) (string, error) {
	var path string
	err := s.withHook(ctx, "pid_file", s.layout, func(L *lua.LState, v lua.LValue) error {
		str, ok := v.(lua.LString)
		if !ok {
			return fmt.Errorf("pid_file: expected string, got %s", v.Type())
		}
		path = string(str)
		return nil
	})
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.layout.Prefix, path)
	}
	return path, nil
}
