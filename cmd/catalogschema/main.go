// Command catalogschema writes a JSON schema for feature catalog files.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
	"github.com/spf13/pflag"

	"roomsync/features"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "catalogschema: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var outPath string

	flagSet := pflag.NewFlagSet("catalogschema", pflag.ContinueOnError)
	flagSet.StringVar(&outPath, "out", "", "path to write the JSON schema")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if outPath == "" {
		return fmt.Errorf("--out is required")
	}

	return writeSchema(outPath, buildSchema())
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(features.CatalogFile))
	schema.Title = "Feature Catalog"
	schema.Description = "Feature templates offered as cards to world-building rooms"
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
