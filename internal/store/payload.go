package store

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/LibrePCB/librepcb-api-server/internal/model"
)

// payloadVersion is the version written into every cached payload. Bump it
// together with payload.schema.json when the PartResult encoding changes.
const payloadVersion = 1

//go:embed payload.schema.json
var payloadSchemaJSON []byte

type payloadEnvelope struct {
	Version int              `json:"version"`
	Part    model.PartResult `json:"part"`
}

var payloadSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(payloadSchemaJSON))
	if err != nil {
		return nil, eris.Wrap(err, "store: parse payload schema")
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("payload.schema.json", doc); err != nil {
		return nil, eris.Wrap(err, "store: add payload schema")
	}
	sch, err := compiler.Compile("payload.schema.json")
	if err != nil {
		return nil, eris.Wrap(err, "store: compile payload schema")
	}
	return sch, nil
})

// encodePayload serializes a part into the versioned cache payload.
func encodePayload(part model.PartResult) (string, error) {
	data, err := json.Marshal(payloadEnvelope{Version: payloadVersion, Part: part})
	if err != nil {
		return "", eris.Wrap(err, "store: marshal payload")
	}
	return string(data), nil
}

// decodePayload validates a cached payload against the schema and returns the
// part it holds.
func decodePayload(data []byte) (*model.PartResult, error) {
	sch, err := payloadSchema()
	if err != nil {
		return nil, err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "store: parse payload")
	}
	if err := sch.Validate(inst); err != nil {
		return nil, eris.Wrap(err, "store: invalid payload")
	}

	var env payloadEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal payload")
	}
	if env.Version != payloadVersion {
		return nil, eris.Errorf("store: unsupported payload version %d", env.Version)
	}
	return &env.Part, nil
}
