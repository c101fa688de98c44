package validator

// =============================================================================
// VALIDATOR: REJECT BAD INPUT AT THE DOOR
// =============================================================================
//
// Two CUE contracts guard the compiler:
//
//   #Description  every register description file, before anything is built
//   #RegisterMap  the tables handed to the policy engine
//
// A description that passes #Description can still fail to build (overlapping
// fields, a reset that does not fit), but it never reaches the builder with a
// misspelled key or an option the register kind does not have.
//
// WHEN VALIDATION FAILS:
// 1. DON'T loosen the schema to make a file pass
// 2. DO fix the description, or the table builder if #RegisterMap fails
// =============================================================================

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed description_schema.cue
var descriptionSchemaFS embed.FS

//go:embed regmap_schema.cue
var regmapSchemaFS embed.FS

// Validator validates register descriptions against the #Description contract.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// New creates a new Validator with the embedded description schema
func New() (*Validator, error) {
	ctx := cuecontext.New()
	schema, err := compileSchema(ctx, descriptionSchemaFS, "description_schema.cue")
	if err != nil {
		return nil, err
	}
	return &Validator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

// Validate checks that a decoded description conforms to the schema.
// Returns nil if valid, or a detailed error explaining what failed.
func (v *Validator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return v.ValidateJSON(jsonBytes)
}

// ValidateJSON validates JSON bytes directly against the schema
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	unified, err := unify(v.ctx, v.schema, "#Description", jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// ValidationErrors returns detailed information about all validation errors
func (v *Validator) ValidationErrors(jsonBytes []byte) []string {
	unified, err := unify(v.ctx, v.schema, "#Description", jsonBytes)
	if err != nil {
		return []string{err.Error()}
	}
	err = unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

// MapValidator validates register map tables against the #RegisterMap contract.
type MapValidator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewMapValidator creates a validator for register map tables.
func NewMapValidator() (*MapValidator, error) {
	ctx := cuecontext.New()
	schema, err := compileSchema(ctx, regmapSchemaFS, "regmap_schema.cue")
	if err != nil {
		return nil, err
	}
	return &MapValidator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

// Validate checks that the tables conform to the register map schema.
func (v *MapValidator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling register map to JSON: %w", err)
	}
	unified, err := unify(v.ctx, v.schema, "#RegisterMap", jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("register map schema validation failed: %w", err)
	}
	return nil
}

func compileSchema(ctx *cue.Context, fs embed.FS, name string) (cue.Value, error) {
	schemaBytes, err := fs.ReadFile(name)
	if err != nil {
		return cue.Value{}, fmt.Errorf("loading embedded schema %s: %w", name, err)
	}
	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling schema %s: %w", name, schema.Err())
	}
	return schema, nil
}

func unify(ctx *cue.Context, schema cue.Value, path string, jsonBytes []byte) (cue.Value, error) {
	dataValue := ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}
	def := schema.LookupPath(cue.ParsePath(path))
	if def.Err() != nil {
		return cue.Value{}, fmt.Errorf("looking up %s definition: %w", path, def.Err())
	}
	return def.Unify(dataValue), nil
}
