package module

import (
	"fmt"
	"strings"

	"github.com/magiconair/properties"
)

// DefaultFactoryKey is consulted when an entry point's extension has no
// mapping of its own.
const DefaultFactoryKey = "default"

// Langs maps entry-point file extensions to verticle factory names. The
// mapping is loaded from a properties file (key = extension, value =
// factory name) with an optional "default" key as fallback.
type Langs struct {
	factories map[string]string
}

// NewLangs builds a mapping from an explicit table
func NewLangs(factories map[string]string) *Langs {
	m := make(map[string]string, len(factories))
	for k, v := range factories {
		m[k] = v
	}
	return &Langs{factories: m}
}

// LoadLangs reads a properties file of extension → factory mappings
func LoadLangs(path string) (*Langs, error) {
	props, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("failed to load language mappings: %w", err)
	}

	m := make(map[string]string)
	for _, key := range props.Keys() {
		m[key] = props.GetString(key, "")
	}
	return &Langs{factories: m}, nil
}

// FactoryName selects the factory for an entry point: by the extension of
// main, else the default mapping. An unmapped extension with no default
// is a configuration error.
func (l *Langs) FactoryName(main string) (string, error) {
	var ext string
	if i := strings.LastIndex(main, "."); i != -1 {
		ext = main[i+1:]
	}

	if ext != "" {
		if name, ok := l.factories[ext]; ok && name != "" {
			return name, nil
		}
	}
	if name, ok := l.factories[DefaultFactoryKey]; ok && name != "" {
		return name, nil
	}
	return "", fmt.Errorf("no language mapping for %q and no default configured", main)
}
