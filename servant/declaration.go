// Package servant implements the property server: named servants that
// declare typed properties, which clients resolve, read, write and watch.
package servant

import (
	"fmt"
	"io"
	"os"

	"github.com/louteranas/nomad-viewer/value"
	"gopkg.in/yaml.v3"
)

// Property is the declaration of a single property of a servant.
type Property struct {
	Servant  string
	Name     string
	Kind     value.Kind
	ReadOnly bool

	// Initial is the value the property has until it is first set. If it is
	// invalid the zero value of Kind is used.
	Initial value.Value
}

// Key returns the "servant.property" name of the property.
func (p Property) Key() string {
	return p.Servant + "." + p.Name
}

// validate returns an error if the declaration is malformed.
func (p Property) validate() error {
	if p.Servant == "" || p.Name == "" {
		return fmt.Errorf("property %q must have both a servant and a name", p.Key())
	}

	if !p.Kind.IsValid() {
		return fmt.Errorf("property %s has an invalid kind", p.Key())
	}

	if p.Initial.IsValid() {
		if err := p.Initial.Expect(p.Kind); err != nil {
			return fmt.Errorf("initial value of %s: %w", p.Key(), err)
		}
	}

	return nil
}

type declarationsDocument struct {
	Servants []struct {
		Name       string `yaml:"name"`
		Properties []struct {
			Name     string      `yaml:"name"`
			Kind     value.Kind  `yaml:"kind"`
			ReadOnly bool        `yaml:"read_only"`
			Initial  interface{} `yaml:"initial"`
		} `yaml:"properties"`
	} `yaml:"servants"`
}

// LoadDeclarations reads property declarations from a YAML document.
//
// Properties are returned in the order they appear in the document, which is
// the order in which IDs are assigned.
func LoadDeclarations(r io.Reader) ([]Property, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc declarationsDocument
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("unable to parse declarations: %w", err)
	}

	var props []Property

	for _, s := range doc.Servants {
		for _, d := range s.Properties {
			p := Property{
				Servant:  s.Name,
				Name:     d.Name,
				Kind:     d.Kind,
				ReadOnly: d.ReadOnly,
			}

			if d.Initial != nil {
				v, err := value.FromNative(d.Kind, d.Initial)
				if err != nil {
					return nil, fmt.Errorf("initial value of %s: %w", p.Key(), err)
				}
				p.Initial = v
			}

			props = append(props, p)
		}
	}

	return props, nil
}

// LoadDeclarationsFile reads property declarations from the YAML file at
// path.
func LoadDeclarationsFile(path string) ([]Property, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadDeclarations(f)
}
