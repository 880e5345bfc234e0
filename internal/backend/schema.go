package backend

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// detailSchema pins down the shape the core depends on in a detail payload.
// The backend serializes loosely-typed dicts here, so shape violations must
// surface as malformed-response errors instead of silently missing fields.
var detailSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"id":     map[string]interface{}{"type": "string"},
		"codigo": map[string]interface{}{"type": "string"},
		"current_contract": map[string]interface{}{
			"type": []interface{}{"object", "null"},
			"properties": map[string]interface{}{
				"id":            map[string]interface{}{"type": "string"},
				"estado":        map[string]interface{}{"type": "string"},
				"fecha_inicio":  map[string]interface{}{"type": []interface{}{"string", "null"}},
				"fecha_fin":     map[string]interface{}{"type": []interface{}{"string", "null"}},
				"renta_mensual": map[string]interface{}{"type": "number"},
			},
		},
		"contracts": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "object"},
		},
		"documents": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id":        map[string]interface{}{"type": "string"},
					"categoria": map[string]interface{}{"type": "string"},
					"filename":  map[string]interface{}{"type": "string"},
					"version":   map[string]interface{}{"type": "integer"},
				},
				"required": []interface{}{"id"},
			},
		},
		"charges": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id":                map[string]interface{}{"type": "string"},
					"estado":            map[string]interface{}{"type": "string"},
					"fecha_vencimiento": map[string]interface{}{"type": []interface{}{"string", "null"}},
				},
			},
		},
		"state_history": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "object"},
		},
	},
	"required": []interface{}{"documents", "charges"},
}

// validateDetailPayload checks a raw detail response against the schema.
func validateDetailPayload(raw []byte) error {
	var data interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}

	schemaLoader := gojsonschema.NewGoLoader(detailSchema)
	documentLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return err
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("schema violations: %s", strings.Join(msgs, "; "))
	}
	return nil
}
