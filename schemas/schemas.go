// Package schemas embeds the JSON Schemas for files the CLI reads.
package schemas

import (
	"embed"
	"fmt"
)

//go:embed *.schema.json
var files embed.FS

// ConfigSchema is the file name of the configuration file schema.
const ConfigSchema = "config.schema.json"

// Load returns the content of the named schema.
func Load(name string) ([]byte, error) {
	data, err := files.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("schema %q not embedded: %w", name, err)
	}
	return data, nil
}

// Names lists every embedded schema.
func Names() []string {
	entries, _ := files.ReadDir(".")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
