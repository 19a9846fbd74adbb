package config

import (
	"fmt"
	"strconv"
)

// Record is one raw input mapping as read from a metafile. Unknown keys are
// ignored by the typed constructors below.
type Record map[string]any

// Template describes a testable package template.
type Template struct {
	ID           string
	Name         string
	PackageName  string
	Dependencies []string

	// HasCodependencies is true when the hascodependencies key holds any
	// non-null value, false and 0 included.
	HasCodependencies bool
	Codependencies    any
}

// Platform is a target OS and the agent used to run jobs on it.
type Platform struct {
	OS         string
	Name       string
	Agent      any
	EditorPath string
	CopyCmd    string
}

// Editor is a version track of the editor under test.
type Editor struct {
	Track string
	// Revisions pins a concrete revision per platform os.
	Revisions map[string]string
}

// Package is a unit the pack pass builds and templates depend on.
type Package struct {
	ID          string
	Name        string
	PackageName string
}

func NewTemplate(index int, r Record) (Template, error) {
	var t Template
	var err error
	if t.ID, err = r.requiredString("template", index, "id"); err != nil {
		return Template{}, err
	}
	if t.Name, err = r.requiredString("template", index, "name"); err != nil {
		return Template{}, err
	}
	if t.PackageName, err = r.requiredString("template", index, "packagename"); err != nil {
		return Template{}, err
	}
	if t.Dependencies, err = r.stringList("template", index, "dependencies"); err != nil {
		return Template{}, err
	}
	// a bare "hascodependencies:" decodes to null and counts as absent
	if v, ok := r["hascodependencies"]; ok && v != nil {
		t.Codependencies, t.HasCodependencies = v, true
	}
	return t, nil
}

func NewPlatform(index int, r Record) (Platform, error) {
	var p Platform
	var err error
	if p.OS, err = r.requiredString("platform", index, "os"); err != nil {
		return Platform{}, err
	}
	if p.Name, err = r.requiredString("platform", index, "name"); err != nil {
		return Platform{}, err
	}
	agent, ok := r["agent_package"]
	if !ok || agent == nil {
		return Platform{}, &ConfigError{Kind: "platform", Index: index, Key: "agent_package"}
	}
	p.Agent = agent
	if p.EditorPath, err = r.requiredString("platform", index, "editorpath"); err != nil {
		return Platform{}, err
	}
	// copycmd is only needed by templates with codependencies, the builder
	// checks it then
	if _, ok := r["copycmd"]; ok {
		if p.CopyCmd, err = r.requiredString("platform", index, "copycmd"); err != nil {
			return Platform{}, err
		}
	}
	return p, nil
}

func NewEditor(index int, r Record) (Editor, error) {
	var e Editor
	var err error
	if e.Track, err = r.requiredString("editor", index, "track"); err != nil {
		return Editor{}, err
	}
	raw, ok := r["revisions"]
	if !ok || raw == nil {
		return e, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return Editor{}, &ConfigError{Kind: "editor", Index: index, Key: "revisions", Reason: "expected a mapping for"}
	}
	e.Revisions = make(map[string]string, len(m))
	for os, v := range m {
		s, ok := scalarString(v)
		if !ok {
			return Editor{}, &ConfigError{Kind: "editor", Index: index, Key: "revisions." + os, Reason: "expected a string for"}
		}
		e.Revisions[os] = s
	}
	return e, nil
}

func NewPackage(index int, r Record) (Package, error) {
	var p Package
	var err error
	if p.ID, err = r.requiredString("package", index, "id"); err != nil {
		return Package{}, err
	}
	if p.Name, err = r.requiredString("package", index, "name"); err != nil {
		return Package{}, err
	}
	if p.PackageName, err = r.requiredString("package", index, "packagename"); err != nil {
		return Package{}, err
	}
	return p, nil
}

func (r Record) requiredString(kind string, index int, key string) (string, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", &ConfigError{Kind: kind, Index: index, Key: key}
	}
	s, ok := scalarString(v)
	if !ok {
		return "", &ConfigError{Kind: kind, Index: index, Key: key, Reason: "expected a scalar for"}
	}
	if s == "" {
		return "", &ConfigError{Kind: kind, Index: index, Key: key, Reason: "empty value for"}
	}
	return s, nil
}

// stringList reads an optional list of scalars. A missing key is an empty list.
func (r Record) stringList(kind string, index int, key string) ([]string, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return []string{}, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, &ConfigError{Kind: kind, Index: index, Key: key, Reason: "expected a list for"}
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := scalarString(item)
		if !ok || s == "" {
			return nil, &ConfigError{Kind: kind, Index: index, Key: fmt.Sprintf("%s[%d]", key, i), Reason: "expected a non-empty scalar for"}
		}
		out = append(out, s)
	}
	return out, nil
}

// scalarString renders the scalar kinds the decoders produce. Numbers are
// Number values holding their source text, so an unquoted track like 2021.10
// is not read back as 2021.1.
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case Number:
		return string(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}
