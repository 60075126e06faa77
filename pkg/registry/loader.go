package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// Loader loads and validates command definition files
type Loader struct {
	logger       zerolog.Logger
	schemaLoader gojsonschema.JSONLoader
}

// NewLoader creates a new definition loader
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger:       logger.With().Str("component", "definition-loader").Logger(),
		schemaLoader: gojsonschema.NewStringLoader(DescriptorSchema),
	}
}

// LoadFile loads and validates a single command definition
func (l *Loader) LoadFile(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}

	if err := l.validateSchema(data); err != nil {
		return nil, fmt.Errorf("definition schema validation failed: %w", err)
	}

	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to parse definition JSON: %w", err)
	}

	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("definition validation failed: %w", err)
	}

	l.logger.Debug().
		Str("command", desc.Name).
		Str("path", path).
		Msg("Loaded definition")

	return &desc, nil
}

// LoadDir loads every .json definition in a directory, sorted by file
// name. A single invalid file fails the whole load so a partial command
// set never reaches the registry.
func (l *Loader) LoadDir(dir string) ([]Descriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	seen := make(map[string]string, len(names))
	descriptors := make([]Descriptor, 0, len(names))
	for _, name := range names {
		desc, err := l.LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if prev, ok := seen[desc.Name]; ok {
			return nil, fmt.Errorf("%s: command %q already defined in %s", name, desc.Name, prev)
		}
		seen[desc.Name] = name
		descriptors = append(descriptors, *desc)
	}

	return descriptors, nil
}

// validateSchema validates a definition against the JSON schema
func (l *Loader) validateSchema(data []byte) error {
	documentLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(l.schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errMsg string
		for i, err := range result.Errors() {
			if i > 0 {
				errMsg += "; "
			}
			errMsg += err.String()
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}
