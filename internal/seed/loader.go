package seed

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the layout of the category seed file:
//
//	categories:
//	  - Tech
//	  - News
type File struct {
	Categories []string `yaml:"categories"`
}

// Loader reads category names from a YAML seed file.
type Loader struct {
	filePath string
}

// NewLoader creates a new seed file loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads the file and returns its category names, trimmed and
// de-duplicated, in file order.
func (l *Loader) Load() ([]string, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a seed document.
func Parse(data []byte) ([]string, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed yaml: %w", err)
	}

	names := make([]string, 0, len(f.Categories))
	seen := make(map[string]bool, len(f.Categories))
	for _, raw := range f.Categories {
		name := strings.TrimSpace(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}
