package loader

import (
	"encoding/json"
	"fmt"

	"incompat-report/internal/models"
)

// DecodeCodes turns a raw qnas value into its tagged form. Mappings and text
// holding a JSON object yield their keys; everything else is Unparseable.
func DecodeCodes(raw any) models.Codes {
	switch v := raw.(type) {
	case map[string]any:
		return structured(keysOf(v))
	case map[string]json.RawMessage:
		return structured(keysOf(v))
	case string:
		return decodeJSONObject([]byte(v))
	case []byte:
		return decodeJSONObject(v)
	case nil:
		return models.Unparseable{Reason: "null"}
	default:
		return models.Unparseable{Reason: fmt.Sprintf("unsupported type %T", raw)}
	}
}

func decodeJSONObject(data []byte) models.Codes {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return models.Unparseable{Reason: err.Error()}
	}
	// "null" decodes without error into a nil map.
	if obj == nil {
		return models.Unparseable{Reason: "json null"}
	}
	return structured(keysOf(obj))
}

func structured(keys []string) models.Codes {
	return models.StructuredCodes{Set: models.NewCodeSet(keys...)}
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
