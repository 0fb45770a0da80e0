package llmbridge

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Parse converts a model's free-form reply into structured data. It is
// deterministic and performs no I/O.
//
// Three extraction tiers run in order, first success wins:
//
//  1. Direct JSON parse of the whole trimmed text.
//  2. Embedded JSON: a brace-matching scan locates the first complete
//     {...} span (nested objects, arrays, and strings handled), which is
//     then parsed.
//  3. Natural-language fallback: a line-oriented state machine extracts
//     bullet/bold-marker items (see fallback.go).
//
// When schema is non-nil the extracted value must satisfy it; a schema
// violation is a hard ValidationError, never a trigger for the next tier.
// Retrying extraction cannot fix a model that returned the wrong shape.
func Parse(raw string, schema map[string]interface{}) (interface{}, error) {
	value, ok := parseDirect(raw)
	if !ok {
		value, ok = parseEmbedded(raw, schema)
	}
	if !ok {
		items := parseNaturalLanguage(raw)
		if len(items) == 0 {
			return nil, &ValidationError{
				EngineError: EngineError{Message: "no structured content could be extracted"},
				RawText:     raw,
			}
		}
		value = itemsToValue(items)
	}

	if schema != nil {
		if err := validateSchema(value, schema, raw); err != nil {
			return nil, err
		}
	}
	return value, nil
}

// parseDirect is tier 1: the entire trimmed reply is JSON.
func parseDirect(raw string) (interface{}, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, false
	}
	var value interface{}
	if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
		return nil, false
	}
	return value, true
}

// parseEmbedded is tier 2: the first complete JSON object embedded in prose.
// Missing optional fields take documented defaults; fields explicitly
// present as null are preserved as null. Null and absent are distinct.
func parseEmbedded(raw string, schema map[string]interface{}) (interface{}, bool) {
	span, ok := firstObjectSpan(raw)
	if !ok {
		return nil, false
	}
	var value interface{}
	if err := json.Unmarshal([]byte(span), &value); err != nil {
		return nil, false
	}
	if m, isMap := value.(map[string]interface{}); isMap {
		applyDefaults(m, schema)
	}
	return value, true
}

// firstObjectSpan scans for the first balanced {...} span. A depth counter
// over braces and brackets, with string-literal and escape awareness, spans
// nested structures correctly where a non-greedy regex would stop at the
// first closing brace.
func firstObjectSpan(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

// optionalDefaults maps optional payload fields to the value they take when
// absent. Only applied to fields the supplied schema declares, so unrelated
// payloads are never polluted.
var optionalDefaults = map[string]func() interface{}{
	"capabilities": func() interface{} { return []interface{}{} },
	"summary":      func() interface{} { return "" },
}

func applyDefaults(m map[string]interface{}, schema map[string]interface{}) {
	props, _ := schemaProperties(schema)
	for name, def := range optionalDefaults {
		if _, declared := props[name]; !declared {
			continue
		}
		if _, present := m[name]; !present {
			m[name] = def()
		}
	}
}

func schemaProperties(schema map[string]interface{}) (map[string]interface{}, bool) {
	if schema == nil {
		return nil, false
	}
	props, ok := schema["properties"].(map[string]interface{})
	return props, ok
}

// validateSchema checks the extracted value against a JSON Schema. Every
// required property must be present and type-correct; nested object schemas
// validate recursively. The violation's field path is surfaced and the raw
// text attached for diagnostics.
func validateSchema(value interface{}, schema map[string]interface{}, raw string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(value),
	)
	if err != nil {
		return &ValidationError{
			EngineError: EngineError{Message: "schema evaluation failed", Cause: err},
			RawText:     raw,
		}
	}
	if result.Valid() {
		return nil
	}

	first := result.Errors()[0]
	var details []string
	for _, re := range result.Errors() {
		details = append(details, re.String())
	}
	return &ValidationError{
		EngineError: EngineError{Message: strings.Join(details, "; ")},
		RawText:     raw,
		FieldPath:   first.Field(),
	}
}

// itemsToValue renders fallback items in the same shape a JSON reply would
// have taken, so schema validation treats every tier alike.
func itemsToValue(items []Item) interface{} {
	out := make([]interface{}, 0, len(items))
	for _, it := range items {
		m := map[string]interface{}{
			"title":       it.Title,
			"description": it.Description,
		}
		if len(it.Files) > 0 {
			m["files"] = toInterfaceSlice(it.Files)
		}
		if len(it.Functions) > 0 {
			m["functions"] = toInterfaceSlice(it.Functions)
		}
		out = append(out, m)
	}
	return out
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
