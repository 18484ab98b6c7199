// Package community loads the hub's languages and forum categories and
// negotiates the content language for each request.
package community

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultFile []byte

// Language is a content language offered by the hub.
type Language struct {
	Code       string `json:"code" yaml:"code"`
	Name       string `json:"name" yaml:"name"`
	NativeName string `json:"native_name" yaml:"native_name"`
	IsActive   bool   `json:"is_active" yaml:"-"`
	IsDefault  bool   `json:"is_default" yaml:"default"`
	Direction  string `json:"direction" yaml:"direction"`
	Disabled   bool   `json:"-" yaml:"disabled"`
}

// CategorySeed describes a forum category in the community file.
type CategorySeed struct {
	Slug        string `yaml:"slug"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	SortOrder   int    `yaml:"sort_order"`
	Parent      string `yaml:"parent"`
}

// File is the community configuration document.
type File struct {
	Languages  []Language     `yaml:"languages"`
	Categories []CategorySeed `yaml:"categories"`
}

// LoadFile reads path, or the built-in defaults when path is empty.
func LoadFile(path string) (File, error) {
	data := defaultFile
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return File{}, fmt.Errorf("community: read %s: %w", path, err)
		}
		data = raw
	}
	return ParseFile(data)
}

// ParseFile decodes and validates a community document.
func ParseFile(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("community: decode: %w", err)
	}
	if err := f.normalize(); err != nil {
		return File{}, err
	}
	return f, nil
}

func (f *File) normalize() error {
	if len(f.Languages) == 0 {
		return errors.New("community: at least one language is required")
	}
	defaults := 0
	seen := map[string]bool{}
	for i := range f.Languages {
		lang := &f.Languages[i]
		code, err := canonical(lang.Code)
		if err != nil {
			return err
		}
		if seen[code] {
			return fmt.Errorf("community: duplicate language %q", code)
		}
		seen[code] = true
		lang.Code = code
		lang.IsActive = !lang.Disabled
		if lang.Direction == "" {
			lang.Direction = "ltr"
		}
		if lang.Direction != "ltr" && lang.Direction != "rtl" {
			return fmt.Errorf("community: language %q has invalid direction %q", code, lang.Direction)
		}
		if lang.IsDefault {
			defaults++
		}
	}
	if defaults > 1 {
		return errors.New("community: only one default language is allowed")
	}
	if defaults == 0 {
		f.Languages[0].IsDefault = true
	}

	slugs := map[string]bool{}
	for i := range f.Categories {
		cat := &f.Categories[i]
		cat.Slug = strings.ToLower(strings.TrimSpace(cat.Slug))
		if cat.Slug == "" || strings.TrimSpace(cat.Name) == "" {
			return fmt.Errorf("community: category %d needs a slug and a name", i+1)
		}
		if slugs[cat.Slug] {
			return fmt.Errorf("community: duplicate category %q", cat.Slug)
		}
		slugs[cat.Slug] = true
	}
	for _, cat := range f.Categories {
		if cat.Parent != "" && !slugs[cat.Parent] {
			return fmt.Errorf("community: category %q has unknown parent %q", cat.Slug, cat.Parent)
		}
	}
	return nil
}
