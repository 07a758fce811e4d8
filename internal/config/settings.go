// Package config loads engine settings and describes the on-disk layout
// that every other package works against.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Settings holds the engine configuration read from parts.yaml.
type Settings struct {
	// BinaryHost serves <name>-<version>-binary.tar.gz and .sha1 files.
	BinaryHost string `yaml:"binary_host" validate:"required,url"`

	// WebhookURL receives install/uninstall notifications. Empty disables it.
	WebhookURL string `yaml:"webhook_url" validate:"omitempty,url"`

	// Keyring is an optional OpenPGP public keyring. When set, binary
	// archives must carry a valid detached signature.
	Keyring string `yaml:"keyring"`

	// Compatible limits which hosts may install precompiled binaries.
	Compatible Compatibility `yaml:"compatible"`

	// BuildEnv is exported to compile and install hooks.
	BuildEnv map[string]string `yaml:"build_env"`

	Publish Publish `yaml:"publish"`
	Log     Log     `yaml:"log"`
}

// Compatibility describes hosts that can run published binaries.
// Empty lists match anything.
type Compatibility struct {
	OS       []string `yaml:"os"`
	Arch     []string `yaml:"arch"`
	Families []string `yaml:"families"`
}

// Publish configures the binary distribution bucket.
type Publish struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Log configures the zerolog output.
type Log struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`
}

// Default returns the settings used when no parts.yaml exists.
func Default() *Settings {
	env := make(map[string]string, len(defaultBuildEnv))
	for k, v := range defaultBuildEnv {
		env[k] = v
	}
	return &Settings{
		BinaryHost: DefaultBinaryHost,
		Compatible: Compatibility{
			OS:       []string{"linux"},
			Arch:     []string{"amd64"},
			Families: []string{"debian"},
		},
		BuildEnv: env,
		Log: Log{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load reads settings from path on top of Default. A missing file is not
// an error.
func Load(path string) (*Settings, error) {
	settings := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var file Settings
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	settings.merge(&file)

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// merge overlays non-zero fields of other onto s.
func (s *Settings) merge(other *Settings) {
	if other.BinaryHost != "" {
		s.BinaryHost = strings.TrimRight(other.BinaryHost, "/")
	}
	if other.WebhookURL != "" {
		s.WebhookURL = other.WebhookURL
	}
	if other.Keyring != "" {
		s.Keyring = other.Keyring
	}
	if other.Compatible.OS != nil {
		s.Compatible.OS = other.Compatible.OS
	}
	if other.Compatible.Arch != nil {
		s.Compatible.Arch = other.Compatible.Arch
	}
	if other.Compatible.Families != nil {
		s.Compatible.Families = other.Compatible.Families
	}
	for k, v := range other.BuildEnv {
		s.BuildEnv[k] = v
	}
	if other.Publish.Bucket != "" {
		s.Publish.Bucket = other.Publish.Bucket
	}
	if other.Publish.CredentialsFile != "" {
		s.Publish.CredentialsFile = other.Publish.CredentialsFile
	}
	if other.Log.Level != "" {
		s.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		s.Log.Format = other.Log.Format
	}
}

// Validate checks field formats.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// Environ returns BuildEnv as sorted KEY=VALUE pairs.
func (s *Settings) Environ() []string {
	keys := make([]string, 0, len(s.BuildEnv))
	for k := range s.BuildEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+s.BuildEnv[k])
	}
	return env
}

// ValidationError reports invalid settings.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	var verrs validator.ValidationErrors
	if errors.As(e.Err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		}
		return "invalid settings: " + strings.Join(fields, ", ")
	}
	return "invalid settings: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
