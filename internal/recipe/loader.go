package recipe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/parts/internal/config"
	"github.com/ZebulonRouseFrantzich/parts/internal/logging"
	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
	"github.com/ZebulonRouseFrantzich/parts/internal/platform"
)

const (
	recipeExt    = ".lua"
	globalTable  = "parts"
	stringSource = "<string>"
)

// DependencyResolver looks up the definition of another package by name.
type DependencyResolver interface {
	Dependency(ctx context.Context, name string) (parts.Definition, error)
}

// Config configures a Loader.
type Config struct {
	// Dir holds the <name>.lua recipe files.
	Dir string
	// Paths locates package prefixes and the shared etc and var dirs
	// handed to hook functions.
	Paths config.Paths
	// Detector provides the platform table. Nil leaves it out.
	Detector platform.Detector
	// Resolver serves p.dependency(). Nil resolves through this loader.
	Resolver DependencyResolver
	Logger   logging.Logger
}

// Loader discovers and parses recipes.
type Loader struct {
	dir      string
	paths    config.Paths
	detector platform.Detector
	validate *validator.Validate
	logger   logging.Logger

	mu       sync.Mutex
	resolver DependencyResolver
	info     *platform.Info
}

// NewLoader creates a recipe loader.
func NewLoader(cfg Config) *Loader {
	return &Loader{
		dir:      cfg.Dir,
		paths:    cfg.Paths,
		detector: cfg.Detector,
		resolver: cfg.Resolver,
		validate: validator.New(),
		logger:   logging.OrNop(cfg.Logger),
	}
}

// SetResolver replaces the dependency resolver. A registry built on top of
// this loader registers itself here.
func (l *Loader) SetResolver(r DependencyResolver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resolver = r
}

// Names lists the recipes in the recipe directory, sorted. A missing
// directory has no recipes.
func (l *Loader) Names(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read recipes: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recipeExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), recipeExt))
	}
	sort.Strings(names)
	return names, nil
}

// Find loads the recipe for name. found is false when no recipe file
// exists.
func (l *Loader) Find(ctx context.Context, name string) (pkg parts.Package, found bool, err error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, false, nil
	}

	path := filepath.Join(l.dir, name+recipeExt)
	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read recipe %s: %w", name, err)
	}

	pkg, err = l.parse(ctx, path, string(src))
	if err != nil {
		return nil, true, err
	}
	if got := pkg.Definition().Name; got != name {
		return nil, true, &ParseError{
			Recipe:  path,
			Message: "name does not match file name",
			Detail:  fmt.Sprintf("recipe declares %q", got),
		}
	}

	l.logger.Debug("loaded recipe", "name", name, "path", path)
	return pkg, true, nil
}

// ParseString parses a recipe held in memory.
func (l *Loader) ParseString(ctx context.Context, src string) (parts.Package, error) {
	return l.parse(ctx, stringSource, src)
}

// Dependency resolves another recipe's definition. It is the default
// resolver when none is configured.
func (l *Loader) Dependency(ctx context.Context, name string) (parts.Definition, error) {
	pkg, found, err := l.Find(ctx, name)
	if err != nil {
		return parts.Definition{}, err
	}
	if !found {
		return parts.Definition{}, fmt.Errorf("no recipe for dependency %q", name)
	}
	return pkg.Definition(), nil
}

func (l *Loader) dependencyResolver() DependencyResolver {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.resolver == nil {
		return l
	}
	return l.resolver
}

func (l *Loader) parse(ctx context.Context, origin, src string) (parts.Package, error) {
	L, table, err := l.eval(ctx, origin, src)
	if err != nil {
		return nil, err
	}
	defer L.Close()

	def, err := extractDefinition(table)
	if err != nil {
		return nil, &ParseError{Recipe: origin, Message: "invalid definition", Detail: err.Error()}
	}
	if err := l.validate.Struct(def); err != nil {
		return nil, &ParseError{Recipe: origin, Message: "invalid definition", Detail: describeValidation(err)}
	}

	pkg := &Package{
		def:    def,
		origin: origin,
		src:    src,
		layout: parts.NewLayout(l.paths.Packages(), def),
		loader: l,
	}
	if tips := table.RawGetString("tips"); tips.Type() == lua.LTString {
		pkg.tips = tips.String()
	}

	for _, hook := range allHooks {
		if err := checkHookType(table, hook); err != nil {
			return nil, &ParseError{Recipe: origin, Message: "invalid hook", Detail: err.Error()}
		}
	}

	start := table.RawGetString(hookStart)
	stop := table.RawGetString(hookStop)
	if start == lua.LNil && stop == lua.LNil {
		return pkg, nil
	}

	svc := &Service{Package: pkg}
	if name := table.RawGetString("process_name"); name.Type() == lua.LTString {
		svc.processName = name.String()
	}
	if pid := table.RawGetString("pid_file"); pid != lua.LNil {
		if pid.Type() != lua.LTString && pid.Type() != lua.LTFunction {
			return nil, &ParseError{Recipe: origin, Message: "invalid pid_file", Detail: "expected string or function, got " + pid.Type().String()}
		}
		svc.hasPidFile = true
	}
	return svc, nil
}

// eval runs src in a fresh sandbox and returns the state with its parts
// table. The caller closes the state.
func (l *Loader) eval(ctx context.Context, origin, src string) (*lua.LState, *lua.LTable, error) {
	L := newSandboxedVM()
	L.SetContext(ctx)

	if l.detector != nil {
		info, err := l.platformInfo(ctx)
		if err != nil {
			L.Close()
			return nil, nil, fmt.Errorf("platform detection failed: %w", err)
		}
		platform.InjectPlatformTable(L, info)
	}

	if err := L.DoString(src); err != nil {
		L.Close()
		return nil, nil, &ParseError{Recipe: origin, Message: "Lua error", Detail: err.Error()}
	}

	table, ok := L.GetGlobal(globalTable).(*lua.LTable)
	if !ok {
		L.Close()
		return nil, nil, &ParseError{
			Recipe:  origin,
			Message: "missing or invalid 'parts' table",
			Detail:  fmt.Sprintf("expected table, got %s", L.GetGlobal(globalTable).Type()),
		}
	}
	return L, table, nil
}

func (l *Loader) platformInfo(ctx context.Context) (*platform.Info, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.info != nil {
		return l.info, nil
	}
	info, err := l.detector.Detect(ctx)
	if err != nil {
		return nil, err
	}
	l.info = info
	return info, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(fields, ", ")
}
