package defunc

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Common errors for manifest loading.
var (
	ErrManifestNotFound = errors.New("watch manifest not found")
	ErrManifestEmpty    = errors.New("watch manifest is empty")
	ErrInvalidManifest  = errors.New("invalid watch manifest")
	ErrManifestConflict = errors.New("watch manifest conflicts with declared type")
)

// Manifest declares types and their watched operations.
//
//	trace_all: false
//	stale_threshold: 2m
//	types:
//	  - name: Random
//	    static: [random]
//	  - name: Dice
//	    instance: [roll]
//	  - name: LoadedDice
//	    parent: Dice
type Manifest struct {
	TraceAll       *bool          `yaml:"trace_all,omitempty"`
	StaleThreshold string         `yaml:"stale_threshold,omitempty"`
	QualifiedNames *bool          `yaml:"qualified_names,omitempty"`
	Types          []TypeManifest `yaml:"types"`
}

// TypeManifest is one type entry of a Manifest.
type TypeManifest struct {
	Name     string   `yaml:"name"`
	Parent   string   `yaml:"parent,omitempty"`
	Internal bool     `yaml:"internal,omitempty"`
	Static   []string `yaml:"static,omitempty"`
	Instance []string `yaml:"instance,omitempty"`
}

// LoadManifest reads and parses a YAML manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrManifestEmpty, path)
	}

	return ParseManifest(data)
}

// ParseManifest parses and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrManifestEmpty
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.StaleThreshold != "" {
		d, err := time.ParseDuration(m.StaleThreshold)
		if err != nil {
			return fmt.Errorf("stale_threshold: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("stale_threshold must not be negative")
		}
	}

	seen := make(map[string]bool, len(m.Types))
	for i, tm := range m.Types {
		if tm.Name == "" {
			return fmt.Errorf("types[%d]: name is required", i)
		}
		if seen[tm.Name] {
			return fmt.Errorf("types[%d]: duplicate type %q", i, tm.Name)
		}
		if tm.Parent == tm.Name {
			return fmt.Errorf("types[%d]: %q cannot be its own parent", i, tm.Name)
		}
		seen[tm.Name] = true
	}

	parents := make(map[string]string, len(m.Types))
	for _, tm := range m.Types {
		parents[tm.Name] = tm.Parent
	}
	for _, tm := range m.Types {
		visited := map[string]bool{tm.Name: true}
		for p := tm.Parent; p != ""; p = parents[p] {
			if visited[p] {
				return fmt.Errorf("type %q: parent cycle through %q", tm.Name, p)
			}
			visited[p] = true
		}
	}
	return nil
}

// Config overlays the manifest's engine settings on base.
func (m *Manifest) Config(base Config) Config {
	if m.TraceAll != nil {
		base.TraceAll = *m.TraceAll
	}
	if m.QualifiedNames != nil {
		base.QualifiedNames = *m.QualifiedNames
	}
	if m.StaleThreshold != "" {
		if d, err := time.ParseDuration(m.StaleThreshold); err == nil {
			base.StaleThreshold = d
		}
	}
	return base
}

// Apply declares the manifest's types on e and adds their watch sets.
// Parents may be declared in code or anywhere in the manifest. A type that
// already exists keeps its declaration; Apply fails with ErrManifestConflict
// when the manifest asks for a different parent or for internal on a type
// that is not. Nothing is declared when Apply fails.
func (m *Manifest) Apply(e *Engine) error {
	inManifest := make(map[string]bool, len(m.Types))
	for _, tm := range m.Types {
		inManifest[tm.Name] = true
	}

	existing := make(map[string]*Type, len(m.Types))
	for _, tm := range m.Types {
		if tm.Parent != "" && !inManifest[tm.Parent] {
			if _, ok := e.Lookup(tm.Parent); !ok {
				return fmt.Errorf("type %q: unknown parent %q", tm.Name, tm.Parent)
			}
		}

		t, ok := e.Lookup(tm.Name)
		if !ok {
			continue
		}
		if tm.Internal && !t.Internal() {
			return fmt.Errorf("%w: type %q is declared without internal", ErrManifestConflict, tm.Name)
		}
		if tm.Parent != "" && (t.Parent() == nil || t.Parent().Name() != tm.Parent) {
			return fmt.Errorf("%w: type %q is declared with parent %q, manifest says %q",
				ErrManifestConflict, tm.Name, parentName(t), tm.Parent)
		}
		existing[tm.Name] = t
	}

	declared := make([]*Type, len(m.Types))
	for i, tm := range m.Types {
		if t, ok := existing[tm.Name]; ok {
			declared[i] = t
			continue
		}
		var opts []TypeOption
		if tm.Internal {
			opts = append(opts, MarkInternal())
		}
		declared[i] = e.Declare(tm.Name, opts...)
	}

	for i, tm := range m.Types {
		t := declared[i]
		if _, ok := existing[tm.Name]; !ok && tm.Parent != "" {
			parent, _ := e.Lookup(tm.Parent)
			t.setParent(parent)
		}
		t.WatchStatic(tm.Static...)
		t.WatchMethods(tm.Instance...)
	}

	e.logger.Debug("manifest applied", "types", len(m.Types))
	return nil
}

func parentName(t *Type) string {
	if t.Parent() == nil {
		return ""
	}
	return t.Parent().Name()
}
