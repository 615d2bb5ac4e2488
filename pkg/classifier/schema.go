package classifier

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qri-io/jsonschema"
)

//go:embed schema.json
var responseSchemaJSON []byte

var responseSchema = mustSchema(responseSchemaJSON)

func mustSchema(b []byte) *jsonschema.Schema {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal(b, rs); err != nil {
		panic(fmt.Sprintf("classifier: invalid response schema: %v", err))
	}
	return rs
}

// validateResponse checks a classifier body against the response schema.
func validateResponse(ctx context.Context, body []byte) error {
	keyErrs, err := responseSchema.ValidateBytes(ctx, body)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(keyErrs) == 0 {
		return nil
	}

	msgs := make([]string, 0, len(keyErrs))
	for _, ke := range keyErrs {
		msgs = append(msgs, ke.Error())
	}
	return fmt.Errorf("invalid response: %s", strings.Join(msgs, "; "))
}
