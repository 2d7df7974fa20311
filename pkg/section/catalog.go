package section

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alignworks/corridord/pkg/alignment"
)

// Catalog file format:
//
//	templates:
//	  - name: two-lane-rural
//	    components:
//	      - name: lane
//	        kind: lane
//	        width: 3.5
//	        slope: -0.02
//	      - name: shoulder
//	        kind: shoulder
//	        width: 2.0
//	        slope: -0.04
//	      - name: fore-ditch
//	        kind: ditch
//	        side_slope: -0.25
//	        daylight_delta: -1.2
//	        max_run: 10

type catalogFile struct {
	Templates []struct {
		Name       string      `yaml:"name"`
		Components []Component `yaml:"components"`
	} `yaml:"templates"`
}

// LoadCatalog reads a YAML template catalog. Catalog templates are
// read-only input to the corridor evaluator; they carry no notifier until
// adopted into a project.
func LoadCatalog(path string) ([]*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses catalog YAML bytes.
func ParseCatalog(data []byte) ([]*Template, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := map[string]bool{}
	templates := make([]*Template, 0, len(file.Templates))
	for _, entry := range file.Templates {
		if entry.Name == "" {
			return nil, fmt.Errorf("catalog template without a name: %w", alignment.ErrInvalidGeometry)
		}
		if seen[entry.Name] {
			return nil, fmt.Errorf("catalog template %q defined twice: %w", entry.Name, alignment.ErrInvalidGeometry)
		}
		seen[entry.Name] = true

		tpl, err := NewTemplate("", entry.Name, entry.Components, nil)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, nil
}
