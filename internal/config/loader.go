package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
)

type Source struct {
	Kind   SourceKind
	Name   string // for defaults
	File   string
	Line   int
	Column int
}

// String renders the source as file:PATH:LINE:COL or default:NAME.
func (s Source) String() string {
	switch s.Kind {
	case SourceFile:
		if s.File == "" {
			return "file"
		}
		if s.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", s.File, s.Line, s.Column)
		}
		return "file:" + s.File
	case SourceDefault:
		if s.Name != "" {
			return "default:" + s.Name
		}
		return "default"
	default:
		return string(s.Kind)
	}
}

type LoadResult struct {
	Config  *Config
	Sources map[string]Source // YAML-path -> last writer source (file only)
	Files   []string          // all loaded files, in load order
}

// DefaultConfigPath returns ~/.config/tiletree/config.yaml.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "tiletree", "config.yaml"), nil
}

// Load reads the merged configuration from the standard location and returns an
// effective config ready for use by the daemon.
func Load() (*Config, error) {
	res, err := LoadWithSources()
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadWithSources loads config and returns file-level sources for introspection.
func LoadWithSources() (*LoadResult, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads path and its includes. A missing file yields the defaults.
func LoadFromPath(path string) (*LoadResult, error) {
	var top layer
	if _, err := os.Stat(path); err == nil {
		l := &loader{seen: map[string]bool{}}
		if top, err = l.load(path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if top.sources == nil {
		top.sources = map[string]Source{}
	}

	cfg, err := BuildEffectiveConfig(top.raw)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return nil, withSource(err, top.sources)
	}
	return &LoadResult{Config: cfg, Sources: top.sources, Files: top.files}, nil
}

// layer is one file merged with everything it includes.
type layer struct {
	raw     RawConfig
	sources map[string]Source
	files   []string
}

// over applies o on top of l; o wins on every key it sets.
func (l layer) over(o layer) layer {
	out := layer{
		raw:     l.raw.merge(o.raw),
		sources: make(map[string]Source, len(l.sources)+len(o.sources)),
		files:   slices.Concat(l.files, o.files),
	}
	maps.Copy(out.sources, l.sources)
	maps.Copy(out.sources, o.sources)
	return out
}

// loader tracks files across one include graph. A file reached twice is
// merged once; a file that includes itself, directly or not, is an error.
type loader struct {
	seen  map[string]bool
	stack []string
}

func (l *loader) load(path string) (layer, error) {
	file := canonical(path)
	if slices.Contains(l.stack, file) {
		chain := append(slices.Clone(l.stack), file)
		return layer{}, fmt.Errorf("include cycle detected: %s", strings.Join(chain, " -> "))
	}
	if l.seen[file] {
		return layer{}, nil
	}
	l.seen[file] = true

	data, err := os.ReadFile(file)
	if err != nil {
		return layer{}, fmt.Errorf("%s: failed to read: %w", file, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return layer{}, fmt.Errorf("%s: failed to parse yaml: %w", file, err)
	}
	own := layer{sources: map[string]Source{}, files: []string{file}}
	if err := decodeStrict(data, &own.raw); err != nil {
		return layer{}, fmt.Errorf("%s: %w", file, err)
	}
	root := rootMapping(&doc)
	recordSources(root, file, "", own.sources)

	l.stack = append(l.stack, file)
	defer func() { l.stack = l.stack[:len(l.stack)-1] }()

	var merged layer
	for _, ref := range includeNodes(root) {
		targets, err := includeTargets(file, ref.Value)
		if err != nil {
			return layer{}, fmt.Errorf("%s:%d:%d: include %q: %w", file, ref.Line, ref.Column, ref.Value, err)
		}
		for _, target := range targets {
			inc, err := l.load(target)
			if err != nil {
				return layer{}, err
			}
			merged = merged.over(inc)
		}
	}
	// The including file overrides its includes.
	return merged.over(own), nil
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// canonical resolves path to an absolute, symlink-free form when possible.
func canonical(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}
	return path
}

// includeTargets resolves an include value relative to the including file.
// Directories expand to their .yaml/.yml files in name order.
func includeTargets(from, include string) ([]string, error) {
	if include == "" {
		return nil, fmt.Errorf("path is empty")
	}
	if include == "~" || strings.HasPrefix(include, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		include = filepath.Join(home, strings.TrimPrefix(include[1:], "/"))
	}
	if !filepath.IsAbs(include) {
		include = filepath.Join(filepath.Dir(from), include)
	}

	info, err := os.Stat(include)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{include}, nil
	}
	entries, err := os.ReadDir(include)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, ent := range entries {
		switch strings.ToLower(filepath.Ext(ent.Name())) {
		case ".yaml", ".yml":
			if !ent.IsDir() {
				files = append(files, filepath.Join(include, ent.Name()))
			}
		}
	}
	slices.Sort(files)
	return files, nil
}

// rootMapping returns the document's top-level mapping, or nil.
func rootMapping(doc *yaml.Node) *yaml.Node {
	n := doc
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return nil
		}
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil
	}
	return n
}

// recordSources maps every dotted key path under n to the position of its
// value. Sequences are recorded as a whole.
func recordSources(n *yaml.Node, file, prefix string, out map[string]Source) {
	if n == nil || n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		path := key.Value
		if prefix != "" {
			path = prefix + "." + path
		}
		out[path] = Source{Kind: SourceFile, File: file, Line: val.Line, Column: val.Column}
		recordSources(val, file, path, out)
	}
}

// includeNodes returns the scalar values of the top-level include key,
// which may be a single path or a list.
func includeNodes(root *yaml.Node) []*yaml.Node {
	if root == nil {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "include" {
			continue
		}
		val := root.Content[i+1]
		switch val.Kind {
		case yaml.ScalarNode:
			return []*yaml.Node{val}
		case yaml.SequenceNode:
			var out []*yaml.Node
			for _, item := range val.Content {
				if item.Kind == yaml.ScalarNode {
					out = append(out, item)
				}
			}
			return out
		}
		return nil
	}
	return nil
}

// withSource stamps a validation error with the file position of its path.
func withSource(err error, sources map[string]Source) error {
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Path == "" {
		return err
	}
	if src, ok := sources[verr.Path]; ok {
		verr.Source = src
	}
	return verr
}
