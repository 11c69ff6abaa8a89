package connector

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed apps.yaml
var defaultCatalog []byte

// App is one connectable external app in the catalog. Name doubles as the
// routing prefix of the app's tool names, so it stays lowercase letters only.
type App struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	AuthConfig  string   `yaml:"authConfig"`
	Actions     []string `yaml:"actions"`
	Tags        []string `yaml:"tags"`
}

// Catalog is the list of apps the gateway knows how to connect.
type Catalog struct {
	Apps []App `yaml:"apps"`
}

// LoadCatalog parses the embedded catalog and, when overridePath exists,
// merges its entries over the defaults (matched by name; new names append).
func LoadCatalog(overridePath string) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(defaultCatalog, &cat); err != nil {
		return nil, fmt.Errorf("parse embedded catalog: %w", err)
	}

	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		switch {
		case os.IsNotExist(err):
			// No override, defaults only.
		case err != nil:
			return nil, fmt.Errorf("read catalog override %s: %w", overridePath, err)
		default:
			var over Catalog
			if err := yaml.Unmarshal(data, &over); err != nil {
				return nil, fmt.Errorf("parse catalog override %s: %w", overridePath, err)
			}
			cat.merge(over)
		}
	}

	return &cat, nil
}

func (c *Catalog) merge(over Catalog) {
	byName := make(map[string]int, len(c.Apps))
	for i, app := range c.Apps {
		byName[app.Name] = i
	}
	for _, app := range over.Apps {
		if i, ok := byName[app.Name]; ok {
			c.Apps[i] = app
		} else {
			c.Apps = append(c.Apps, app)
		}
	}
}

// Lookup returns the catalog entry for name.
func (c *Catalog) Lookup(name string) (App, bool) {
	for _, app := range c.Apps {
		if app.Name == name {
			return app, true
		}
	}
	return App{}, false
}

// Names returns every catalog app name in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Apps))
	for i, app := range c.Apps {
		names[i] = app.Name
	}
	return names
}
