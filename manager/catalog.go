package manager

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition describes an application that the manager can start.
type Definition struct {
	// Name is the unique name of the application.
	Name string `yaml:"name"`

	// Executable is the path of the program to run. It may be empty for
	// applications that are started by a custom Runner.
	Executable string `yaml:"executable"`

	// Args are prepended to the arguments given when the application is
	// started.
	Args []string `yaml:"args"`

	// Operations is the list of request operations served by the
	// application. If it is empty any operation may be bound.
	Operations []string `yaml:"operations"`

	// Multiple allows more than one live instance of the application.
	Multiple bool `yaml:"multiple"`
}

// Declares returns true if the application serves the named operation.
func (d Definition) Declares(op string) bool {
	if len(d.Operations) == 0 {
		return true
	}

	for _, o := range d.Operations {
		if o == op {
			return true
		}
	}

	return false
}

// Catalog is the set of applications known to the manager.
type Catalog struct {
	Applications []Definition `yaml:"applications"`
}

// Lookup returns the definition of the named application.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	if c == nil {
		return Definition{}, false
	}

	for _, d := range c.Applications {
		if d.Name == name {
			return d, true
		}
	}

	return Definition{}, false
}

// Validate returns an error if the catalog is malformed.
func (c *Catalog) Validate() error {
	names := map[string]struct{}{}

	for i, d := range c.Applications {
		if d.Name == "" {
			return fmt.Errorf("application #%d has no name", i)
		}

		if _, ok := names[d.Name]; ok {
			return fmt.Errorf("application %q is defined more than once", d.Name)
		}

		names[d.Name] = struct{}{}
	}

	return nil
}

// LoadCatalog reads a YAML catalog from r.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	c := &Catalog{}
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return nil, fmt.Errorf("unable to parse catalog: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	return c, nil
}

// LoadCatalogFile reads a YAML catalog from the file at path.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadCatalog(f)
}
