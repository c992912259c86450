package rangefile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// decodeJSON validates data against the embedded schema before decoding.
func decodeJSON(data []byte) ([]Record, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, errors.Wrapf(ErrBadRecord, "json: %v", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}

		return nil, errors.Wrapf(ErrBadRecord, "schema: %s", strings.Join(msgs, "; "))
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raws []rawRecord

	err = dec.Decode(&raws)
	if err != nil {
		return nil, errors.Wrap(err, "decode json")
	}

	return convert(raws)
}
