package config

// Environment variables
const (
	EnvRoot = "PARTS_ROOT"
)

// Defaults
const (
	DefaultBinaryHost = "http://parts.nitrous.io"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "console"
)

// defaultBuildEnv is exported to compile and install hooks unless the
// settings file overrides a key.
var defaultBuildEnv = map[string]string{
	"CPPFLAGS":  "-D_FORTIFY_SOURCE=2",
	"CHOST":     "x86_64-pc-linux-gnu",
	"CFLAGS":    "-march=x86-64 -mtune=generic -O2 -pipe -fstack-protector --param=ssp-buffer-size=4",
	"CXXFLAGS":  "-march=x86-64 -mtune=generic -O2 -pipe -fstack-protector --param=ssp-buffer-size=4",
	"LDFLAGS":   "-Wl,-O1,--sort-common,--as-needed,-z,relro",
	"MAKEFLAGS": "-j2",
}
