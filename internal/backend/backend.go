// Package backend defines the agent backends crew can spawn as teammates.
//
// A backend describes how to launch one kind of coding agent: its binary,
// fixed arguments, permission-bypass flag, and whether the process speaks
// the crew MCP surface natively or needs the watcher bridge. Two backends
// are built in (claude, codex); a backends.yaml file can override them or
// define new ones.
package backend

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/crew/internal/errors"
)

// Kind describes how a backend process participates in the team.
type Kind string

const (
	// KindNative backends connect to the crew MCP server themselves and
	// read their own inbox. No watcher is attached.
	KindNative Kind = "native"

	// KindBridged backends have no crew awareness. A watcher tails their
	// inbox and injects messages into their tmux pane as typed input.
	KindBridged Kind = "bridged"
)

// Backend describes how to launch one kind of agent process.
type Backend struct {
	// Name is the backend identifier used in config and spawn requests
	Name string `yaml:"name"`

	// Kind is native or bridged
	Kind Kind `yaml:"kind"`

	// Binary is the executable name looked up on PATH
	Binary string `yaml:"binary"`

	// Args are fixed arguments always passed to the binary
	Args []string `yaml:"args,omitempty"`

	// Env are KEY=VALUE pairs prepended to the launch command
	Env []string `yaml:"env,omitempty"`

	// SkipPermissionsFlag is appended when permission bypass is requested
	SkipPermissionsFlag string `yaml:"skip_permissions_flag,omitempty"`
}

// Builtins returns the built-in backend definitions, keyed by name.
func Builtins() map[string]Backend {
	return map[string]Backend{
		"claude": {
			Name:                "claude",
			Kind:                KindNative,
			Binary:              "claude",
			Env:                 []string{"CLAUDECODE=1", "CLAUDE_CODE_EXPERIMENTAL_AGENT_TEAMS=1"},
			SkipPermissionsFlag: "--dangerously-skip-permissions",
		},
		"codex": {
			Name:                "codex",
			Kind:                KindBridged,
			Binary:              "codex",
			Args:                []string{"--no-alt-screen"},
			SkipPermissionsFlag: "--dangerously-bypass-approvals-and-sandbox",
		},
	}
}

// Registry holds the resolved set of enabled backends. The set can
// grow after construction: Enable adds a known definition, which lets
// the server enable the connecting client's own backend on the fly.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
	defs     map[string]Backend
}

// NewRegistry builds a registry from the enabled backend names. Each
// name must be a builtin or be defined in overrides (loaded from
// backends.yaml); overrides also replace builtin definitions.
func NewRegistry(enabled []string, overrides map[string]Backend) (*Registry, error) {
	defs := Builtins()
	for name, b := range overrides {
		if b.Name == "" {
			b.Name = name
		}
		defs[name] = b
	}

	backends := make(map[string]Backend, len(enabled))
	for _, name := range enabled {
		b, ok := defs[name]
		if !ok {
			return nil, errors.NewValidationError("backend", name, "unknown backend")
		}
		if err := validate(b); err != nil {
			return nil, err
		}
		backends[name] = b
	}

	return &Registry{backends: backends, defs: defs}, nil
}

// Enable adds a backend from the known definitions to the enabled set.
// Enabling an already enabled backend is a no-op.
func (r *Registry) Enable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.backends[name]; ok {
		return nil
	}
	b, ok := r.defs[name]
	if !ok {
		return errors.NewValidationError("backend", name, "unknown backend")
	}
	if err := validate(b); err != nil {
		return err
	}
	r.backends[name] = b
	return nil
}

// validate checks a backend definition for required fields.
func validate(b Backend) error {
	if b.Binary == "" {
		return errors.NewValidationError("backend", b.Name, "binary must be set")
	}
	switch b.Kind {
	case KindNative, KindBridged:
	default:
		return errors.NewValidationError("backend", b.Name,
			fmt.Sprintf("kind must be %q or %q, got %q", KindNative, KindBridged, b.Kind))
	}
	return nil
}

// Get returns the backend by name.
func (r *Registry) Get(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	if !ok {
		return Backend{}, errors.NewValidationError("backend", name, "backend not enabled")
	}
	return b, nil
}

// Names returns the enabled backend names in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	return names
}

// Has reports whether the backend is enabled.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.backends[name]
	return ok
}

// backendsFile is the on-disk shape of backends.yaml: a map from backend
// name to definition.
type backendsFile struct {
	Backends map[string]Backend `yaml:"backends"`
}

// LoadFile reads backend definitions from a backends.yaml file. A
// missing file is not an error and yields an empty map.
func LoadFile(path string) (map[string]Backend, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Backend{}, nil
		}
		return nil, errors.Wrapf(err, "failed to read backends file %s", path)
	}

	var file backendsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "failed to parse backends file %s", path)
	}
	if file.Backends == nil {
		return map[string]Backend{}, nil
	}
	return file.Backends, nil
}

// Discover looks up each backend's binary on PATH and returns the
// resolved paths for those found.
func (r *Registry) Discover() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	found := make(map[string]string)
	for name, b := range r.backends {
		if path, err := exec.LookPath(b.Binary); err == nil {
			found[name] = path
		}
	}
	return found
}

// DetectFromClient maps an MCP clientInfo name to a backend name.
// Returns "" when the client is not recognized.
func DetectFromClient(clientName string) string {
	name := strings.ToLower(strings.TrimSpace(clientName))
	switch {
	case name == "claude" || strings.HasPrefix(name, "claude-code") || strings.HasPrefix(name, "claude code"):
		return "claude"
	case strings.HasPrefix(name, "codex"):
		return "codex"
	}
	return ""
}
