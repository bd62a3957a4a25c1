package llm

import (
	"bytes"
	"embed"
	"encoding/json"
	"io/fs"
	"path"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema names the embedded JSON schema a completion must satisfy.
type Schema string

const (
	SchemaQueryPlans       Schema = "query_plans.json"
	SchemaEvidenceClaims   Schema = "evidence_claims.json"
	SchemaEvidenceGroups   Schema = "evidence_groups.json"
	SchemaOptions          Schema = "options.json"
	SchemaOptionMerges     Schema = "option_merges.json"
	SchemaEvidenceMappings Schema = "evidence_mappings.json"
	SchemaOptionFactors    Schema = "option_factors.json"
	SchemaRecommendation   Schema = "recommendation.json"
	SchemaBrief            Schema = "brief.json"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	compileOnce sync.Once
	compiled    map[Schema]*jsonschema.Schema
	compileErr  error
)

func compileSchemas() (map[Schema]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		entries, err := fs.ReadDir(schemaFS, "schemas")
		if err != nil {
			compileErr = eris.Wrap(err, "llm: read schemas")
			return
		}
		compiler := jsonschema.NewCompiler()
		for _, e := range entries {
			raw, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
			if err != nil {
				compileErr = eris.Wrapf(err, "llm: read schema %s", e.Name())
				return
			}
			if err := compiler.AddResource(e.Name(), bytes.NewReader(raw)); err != nil {
				compileErr = eris.Wrapf(err, "llm: add schema %s", e.Name())
				return
			}
		}
		out := make(map[Schema]*jsonschema.Schema, len(entries))
		for _, e := range entries {
			s, err := compiler.Compile(e.Name())
			if err != nil {
				compileErr = eris.Wrapf(err, "llm: compile schema %s", e.Name())
				return
			}
			out[Schema(e.Name())] = s
		}
		compiled = out
	})
	return compiled, compileErr
}

// Validate checks data against the named schema. A decode failure returns
// ErrInvalidJSON; a schema mismatch returns ErrSchemaViolation.
func Validate(name Schema, data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return eris.Wrapf(ErrInvalidJSON, "%v", err)
	}
	if name == "" {
		return nil
	}
	schemas, err := compileSchemas()
	if err != nil {
		return err
	}
	s, ok := schemas[name]
	if !ok {
		return eris.Errorf("llm: unknown schema %q", name)
	}
	if err := s.Validate(doc); err != nil {
		return eris.Wrapf(ErrSchemaViolation, "%s: %v", name, err)
	}
	return nil
}
