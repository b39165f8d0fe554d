package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	invopop "github.com/invopop/jsonschema"
	tekuri "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kick-dev/kick-host-sdk/kick/dto"
	"github.com/kick-dev/kick-host-sdk/kick/entities"
)

const descriptorSchemaURL = "kick://schema/raw-descriptor.json"

// WireDecoder validates and decodes the JSON registration payload produced
// by out-of-process bundles. The top-level shape is strict (a broken shape
// fails the whole load); individual descriptors failing their schema are
// dropped with a warning so one malformed kick cannot sink its bundle.
type WireDecoder struct {
	descriptorSchema *tekuri.Schema
	logger           *slog.Logger
}

// WireOption configures a WireDecoder.
type WireOption func(*WireDecoder)

// WithWireLogger sets the logger used for dropped-descriptor warnings.
func WithWireLogger(l *slog.Logger) WireOption {
	return func(d *WireDecoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewWireDecoder compiles the descriptor schema (generated from the DTO
// type, so wire validation can never drift from the Go shape).
func NewWireDecoder(opts ...WireOption) (*WireDecoder, error) {
	reflector := new(invopop.Reflector)
	reflector.ExpandedStruct = true
	reflector.DoNotReference = true
	generated := reflector.Reflect(&dto.RawDescriptorDTO{})

	schemaJSON, err := json.Marshal(generated)
	if err != nil {
		return nil, fmt.Errorf("marshal generated descriptor schema: %w", err)
	}

	compiler := tekuri.NewCompiler()
	if err := compiler.AddResource(descriptorSchemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add descriptor schema resource: %w", err)
	}
	schema, err := compiler.Compile(descriptorSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile descriptor schema: %w", err)
	}

	d := &WireDecoder{
		descriptorSchema: schema,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Decode parses a registration payload. source is used for error and log
// context only.
func (d *WireDecoder) Decode(source string, payload []byte) (*dto.RegistrationDTO, error) {
	var top struct {
		Kicks []json.RawMessage `json:"kicks"`
	}
	if err := json.Unmarshal(payload, &top); err != nil {
		return nil, &entities.ContractError{
			Source: source,
			Reason: fmt.Sprintf("registration payload is not the expected shape: %v", err),
		}
	}
	if top.Kicks == nil {
		return nil, &entities.ContractError{
			Source: source,
			Reason: `registration payload is missing the "kicks" array`,
		}
	}

	reg := &dto.RegistrationDTO{Kicks: make([]dto.RawDescriptorDTO, 0, len(top.Kicks))}
	for i, raw := range top.Kicks {
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			d.dropped(source, i, err)
			continue
		}
		if err := d.descriptorSchema.Validate(value); err != nil {
			d.dropped(source, i, err)
			continue
		}
		var element dto.RawDescriptorDTO
		if err := json.Unmarshal(raw, &element); err != nil {
			d.dropped(source, i, err)
			continue
		}
		reg.Kicks = append(reg.Kicks, element)
	}
	return reg, nil
}

func (d *WireDecoder) dropped(source string, index int, err error) {
	d.logger.Warn("dropping malformed kick descriptor",
		"source", source,
		"index", index,
		"error", err)
}
