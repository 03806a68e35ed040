package auctionapi

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/vcg_request.schema.json
var vcgRequestSchemaJSON string

var (
	vcgRequestSchemaOnce sync.Once
	vcgRequestSchema     *jsonschema.Schema
	vcgRequestSchemaErr  error
)

func compiledVCGRequestSchema() (*jsonschema.Schema, error) {
	vcgRequestSchemaOnce.Do(func() {
		vcgRequestSchema, vcgRequestSchemaErr = jsonschema.CompileString("vcg_request.schema.json", vcgRequestSchemaJSON)
	})
	return vcgRequestSchema, vcgRequestSchemaErr
}

// ValidateRequestJSON checks a raw VCG request against the request schema.
// Structural problems are reported before any bid is decrypted or hashed.
func ValidateRequestJSON(raw []byte) error {
	schema, err := compiledVCGRequestSchema()
	if err != nil {
		return fmt.Errorf("compile request schema: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return fmt.Errorf("parse request: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("request does not match schema: %w", err)
	}
	return nil
}
