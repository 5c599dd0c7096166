package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/blockedit/internal/errors"
)

// Format names a rule file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", errors.NewValidationError(errors.ErrCodeUnsupportedFormat,
			"unsupported schema file extension").WithContext("path", path)
	}
}

// File is the on-disk shape of a rule document.
type File struct {
	Blocks   []BlockSpec   `yaml:"blocks" toml:"blocks"`
	Variants []VariantSpec `yaml:"variants" toml:"variants"`
	Root     []string      `yaml:"root" toml:"root"`
}

// BlockSpec declares one block rule.
type BlockSpec struct {
	Tag        string          `yaml:"tag" toml:"tag"`
	Classes    *ClassRule      `yaml:"classes,omitempty" toml:"classes,omitempty"`
	Attributes []AttributeSpec `yaml:"attributes,omitempty" toml:"attributes,omitempty"`
	Children   []ChildSpec     `yaml:"children,omitempty" toml:"children,omitempty"`
}

// VariantSpec declares a named variant of a block.
type VariantSpec struct {
	Name string `yaml:"name" toml:"name"`

	BlockSpec `yaml:",inline"`
}

// AttributeSpec declares one allowed attribute. Sanitize names an entry of
// Sanitizers.
type AttributeSpec struct {
	Name     string   `yaml:"name" toml:"name"`
	Values   []string `yaml:"values,omitempty" toml:"values,omitempty"`
	Sanitize string   `yaml:"sanitize,omitempty" toml:"sanitize,omitempty"`
}

// ChildSpec declares one child rule.
type ChildSpec struct {
	Tags       []string                   `yaml:"tags" toml:"tags"`
	AllowText  bool                       `yaml:"allowText,omitempty" toml:"allowText,omitempty"`
	Classes    map[string]*ClassRule      `yaml:"classes,omitempty" toml:"classes,omitempty"`
	Attributes map[string][]AttributeSpec `yaml:"attributes,omitempty" toml:"attributes,omitempty"`
}

// LoadFile reads a YAML or TOML rule document into reg.
func LoadFile(reg *Registry, path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewIOError(errors.ErrCodeFileNotFound, "schema file not found", err).
				WithContext("path", path)
		}
		return fmt.Errorf("reading schema file %s: %w", path, err)
	}
	if err := Load(reg, data, format); err != nil {
		return fmt.Errorf("loading schema file %s: %w", path, err)
	}
	return nil
}

// Load decodes a rule document and registers its contents. Nothing is
// registered when the document is invalid.
func Load(reg *Registry, data []byte, format Format) error {
	file, err := Decode(data, format)
	if err != nil {
		return err
	}

	blocks := make([]Rule, 0, len(file.Blocks))
	for _, spec := range file.Blocks {
		rule, err := spec.rule()
		if err != nil {
			return err
		}
		blocks = append(blocks, rule)
	}
	variants := make([]VariantSchema, 0, len(file.Variants))
	for _, spec := range file.Variants {
		if spec.Name == "" {
			return errors.NewValidationError(errors.ErrCodeSchemaInvalid,
				"variant without a name").WithContext("tag", spec.Tag)
		}
		rule, err := spec.rule()
		if err != nil {
			return err
		}
		variants = append(variants, VariantSchema{Name: spec.Name, Rule: rule})
	}

	for _, rule := range blocks {
		reg.RegisterBlock(rule.Tag, rule)
	}
	for _, v := range variants {
		reg.RegisterVariant(v.Tag, v)
	}
	reg.AllowInRoot(file.Root...)
	return nil
}

// Decode parses a rule document without registering it.
func Decode(data []byte, format Format) (*File, error) {
	var file File
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil && err != io.EOF {
			return nil, errors.NewValidationError(errors.ErrCodeSchemaInvalid,
				"invalid YAML schema: "+err.Error())
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil {
			return nil, errors.NewValidationError(errors.ErrCodeSchemaInvalid,
				"invalid TOML schema: "+err.Error())
		}
	default:
		return nil, errors.NewValidationError(errors.ErrCodeUnsupportedFormat,
			"unsupported schema format: "+string(format))
	}
	return &file, nil
}

func (b BlockSpec) rule() (Rule, error) {
	if strings.TrimSpace(b.Tag) == "" {
		return Rule{}, errors.NewValidationError(errors.ErrCodeSchemaInvalid, "block without a tag")
	}
	attrs, err := attributeRules(b.Tag, b.Attributes)
	if err != nil {
		return Rule{}, err
	}
	rule := Rule{
		Tag:               foldTag(b.Tag),
		Classes:           b.Classes,
		AllowedAttributes: attrs,
	}
	for _, c := range b.Children {
		child := ChildRule{
			Tags:      c.Tags,
			AllowText: c.AllowText,
			Classes:   c.Classes,
		}
		if len(c.Attributes) > 0 {
			child.Attributes = make(map[string][]AttributeRule, len(c.Attributes))
			for tag, specs := range c.Attributes {
				rules, err := attributeRules(tag, specs)
				if err != nil {
					return Rule{}, err
				}
				child.Attributes[tag] = rules
			}
		}
		rule.AllowedChildren = append(rule.AllowedChildren, child)
	}
	return rule, nil
}

func attributeRules(tag string, specs []AttributeSpec) ([]AttributeRule, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make([]AttributeRule, 0, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return nil, errors.NewValidationError(errors.ErrCodeSchemaInvalid,
				"attribute without a name").WithContext("tag", tag)
		}
		rule := AttributeRule{Name: s.Name, Values: s.Values}
		if s.Sanitize != "" {
			fn, ok := Sanitizers[s.Sanitize]
			if !ok {
				return nil, errors.NewValidationError(errors.ErrCodeUnknownSanitizer,
					"unknown sanitizer "+s.Sanitize).
					WithContext("tag", tag).
					WithContext("attribute", s.Name)
			}
			rule.Sanitize = fn
		}
		out = append(out, rule)
	}
	return out, nil
}
