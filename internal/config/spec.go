package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SpecFile is the graph specification read from graph.yaml.
type SpecFile struct {
	Version int        `yaml:"version"`
	Types   []TypeSpec `yaml:"types"`

	typeIndex map[string]*TypeSpec
}

type TypeSpec struct {
	Name        string      `yaml:"name"`
	Table       string      `yaml:"table"`
	IDColumn    string      `yaml:"id_column"`
	OwnerColumn string      `yaml:"owner_column"`
	GroupColumn string      `yaml:"group_column"`
	TimeColumn  string      `yaml:"time_column"`
	Ops         []string    `yaml:"ops"`
	Exclude     []string    `yaml:"exclude"`
	Entries     []EntrySpec `yaml:"entries"`
	Reap        []ReapSpec  `yaml:"reap"`
}

// EntrySpec is a cascade edge: rows of Child whose Property holds the
// parent's id.
type EntrySpec struct {
	Child    string   `yaml:"child"`
	Property string   `yaml:"property"`
	Ops      []string `yaml:"ops"`
}

// ReapSpec is a reference edge: Column on the type's table holds the id
// of a Target row.
type ReapSpec struct {
	Column string   `yaml:"column"`
	Target string   `yaml:"target"`
	Scope  string   `yaml:"scope"`
	Ops    []string `yaml:"ops"`
}

var (
	typeOps  = []string{"soft"}
	entryOps = []string{"orphan", "null", "soft", "keep"}
	reapOps  = []string{"soft", "keep"}
)

func LoadSpecFile(path string) (*SpecFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading spec file: %w", err)
	}

	var spec SpecFile
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("loading spec file: %w", err)
	}

	if err := validateSpecFile(&spec); err != nil {
		return nil, fmt.Errorf("loading spec file: %w", err)
	}

	spec.typeIndex = make(map[string]*TypeSpec)
	for i := range spec.Types {
		t := &spec.Types[i]
		spec.typeIndex[strings.ToLower(t.Name)] = t
	}

	return &spec, nil
}

func validateSpecFile(s *SpecFile) error {
	if s.Version != 1 {
		return fmt.Errorf("unsupported version: %d", s.Version)
	}
	if len(s.Types) == 0 {
		return fmt.Errorf("at least one type is required")
	}

	names := make(map[string]struct{})
	for i, t := range s.Types {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("type %d name is required", i)
		}
		key := strings.ToLower(t.Name)
		if _, exists := names[key]; exists {
			return fmt.Errorf("duplicate type name: %s", t.Name)
		}
		names[key] = struct{}{}

		if err := checkOps(t.Ops, typeOps); err != nil {
			return fmt.Errorf("type %s: %w", t.Name, err)
		}
		for _, e := range t.Entries {
			if strings.TrimSpace(e.Child) == "" || strings.TrimSpace(e.Property) == "" {
				return fmt.Errorf("type %s has entry without child or property", t.Name)
			}
			if err := checkOps(e.Ops, entryOps); err != nil {
				return fmt.Errorf("type %s entry %s: %w", t.Name, e.Child, err)
			}
		}
		for _, r := range t.Reap {
			if strings.TrimSpace(r.Column) == "" || strings.TrimSpace(r.Target) == "" {
				return fmt.Errorf("type %s has reap without column or target", t.Name)
			}
			switch strings.ToLower(r.Scope) {
			case "", "last", "all":
			default:
				return fmt.Errorf("type %s reap %s: unsupported scope: %s", t.Name, r.Column, r.Scope)
			}
			if err := checkOps(r.Ops, reapOps); err != nil {
				return fmt.Errorf("type %s reap %s: %w", t.Name, r.Column, err)
			}
		}
	}

	return nil
}

func checkOps(ops, allowed []string) error {
	for _, op := range ops {
		ok := false
		for _, a := range allowed {
			if strings.EqualFold(strings.TrimSpace(op), a) {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("unsupported op: %s", op)
		}
	}
	return nil
}

func (s *SpecFile) TypeByName(name string) (*TypeSpec, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.typeIndex[strings.ToLower(name)]
	return t, ok
}

func (s *SpecFile) IsValidType(name string) bool {
	_, ok := s.TypeByName(name)
	return ok
}
