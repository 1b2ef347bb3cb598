package catalogs

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	schemaOnce sync.Once
	schemaErr  error
	schemas    map[string]*jsonschema.Schema
)

func compileSchemas() {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		schemaErr = err
		return
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		b, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			schemaErr = err
			return
		}
		if err := c.AddResource(e.Name(), bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("schema %s: %w", e.Name(), err)
			return
		}
		names = append(names, e.Name())
	}
	schemas = make(map[string]*jsonschema.Schema, len(names))
	for _, n := range names {
		s, err := c.Compile(n)
		if err != nil {
			schemaErr = fmt.Errorf("compile %s: %w", n, err)
			return
		}
		schemas[n] = s
	}
}

func validateDoc(schemaName string, raw []byte) error {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	s := schemas[schemaName]
	if s == nil {
		return fmt.Errorf("unknown schema %q", schemaName)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
