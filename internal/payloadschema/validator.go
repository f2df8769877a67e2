// Package payloadschema validates queued task payloads before they reach the
// detection worker. Tasks arrive over a shared queue with at-least-once
// delivery; malformed payloads are rejected here, not deep in the worker.
package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed detection_task.schema.json
var detectionTaskSchemaJSON string

// DetectionTask is one queued request to detect a post's source language.
type DetectionTask struct {
	PayloadVersion string `json:"payload_version"`
	PostUUID       string `json:"post_uuid"`
	Reason         string `json:"reason"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

func ValidateDetectionTaskPayload(payload json.RawMessage) (*DetectionTask, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var task DetectionTask
	if err := json.Unmarshal(normalized, &task); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if strings.TrimSpace(task.PostUUID) == "" {
		return nil, fmt.Errorf("post_uuid must not be blank")
	}

	return &task, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("detection_task.schema.json", strings.NewReader(detectionTaskSchemaJSON)); err != nil {
			compiledSchemaErr = err
			return
		}
		compiledSchema, compiledSchemaErr = compiler.Compile("detection_task.schema.json")
	})
	return compiledSchema, compiledSchemaErr
}

func decodeStrictJSON(payload json.RawMessage) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if _, err := decoder.Token(); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing data")
	}
	return value, nil
}
