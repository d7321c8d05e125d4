package data

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	yaml "gopkg.in/yaml.v3"
)

// ParseJSONOrYAML is used in the same way as json.Unmarshal, but also accepts YAML. YAML input
// is converted to JSON before decoding, so json struct tags and UnmarshalText methods apply to
// both forms, including YAML anchors and merge keys.
func ParseJSONOrYAML(data []byte, target interface{}) error {
	return parseJSONOrYAML(data, target, false)
}

// ParseJSONOrYAMLStrict is like ParseJSONOrYAML but fails if the input has a property that
// target has no field for. Config files use it so that a misspelled setting is an error instead
// of being ignored.
func ParseJSONOrYAMLStrict(data []byte, target interface{}) error {
	return parseJSONOrYAML(data, target, true)
}

func parseJSONOrYAML(data []byte, target interface{}, strict bool) error {
	if json.Valid(data) {
		return describeDecodeError(decodeJSON(data, target, strict), data)
	}

	var rawStructure interface{}
	if err := yaml.Unmarshal(data, &rawStructure); err != nil {
		if looksLikeJSON(data) {
			// Neither form parsed; the JSON error is the useful one for JSON-looking input.
			return describeDecodeError(json.Unmarshal(data, &rawStructure), data)
		}
		return err
	}
	normalized, err := normalizeParsedYAMLForJSON(rawStructure)
	if err != nil {
		return err
	}
	jsonData, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	// Offsets into the converted JSON mean nothing to the author of the YAML, so only the field
	// path is reported.
	return describeDecodeError(decodeJSON(jsonData, target, strict), nil)
}

func decodeJSON(data []byte, target interface{}, strict bool) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	if strict {
		decoder.DisallowUnknownFields()
	}
	return decoder.Decode(target)
}

func looksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) != 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func describeDecodeError(err error, source []byte) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &typeErr):
		message := fmt.Sprintf("cannot use %s value for %q (expected %s)", typeErr.Value, typeErr.Field, typeErr.Type)
		if source != nil {
			message += " at " + position(source, typeErr.Offset)
		}
		return errors.New(message)
	case errors.As(err, &syntaxErr) && source != nil:
		return fmt.Errorf("invalid JSON at %s: %w", position(source, syntaxErr.Offset), err)
	default:
		return err
	}
}

// position converts a byte offset into a 1-based line and column.
func position(data []byte, offset int64) string {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	if offset < 0 {
		offset = 0
	}
	before := data[:offset]
	line := bytes.Count(before, []byte("\n")) + 1
	column := len(before) - bytes.LastIndexByte(before, '\n')
	return fmt.Sprintf("line %d, column %d", line, column)
}

func normalizeParsedYAMLForJSON(data interface{}) (interface{}, error) {
	switch data := data.(type) {
	case []interface{}:
		arrayOut := make([]interface{}, 0, len(data))
		for _, v := range data {
			v1, err := normalizeParsedYAMLForJSON(v)
			if err != nil {
				return nil, err
			}
			arrayOut = append(arrayOut, v1)
		}
		return arrayOut, nil
	case map[string]interface{}:
		mapOut := make(map[string]interface{}, len(data))
		for k, v := range data {
			v1, err := normalizeParsedYAMLForJSON(v)
			if err != nil {
				return nil, err
			}
			mapOut[k] = v1
		}
		return mapOut, nil
	case map[interface{}]interface{}:
		mapOut := make(map[string]interface{}, len(data))
		for k, v := range data {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("YAML map key %v is of type %T; only string keys are allowed", k, k)
			}
			v1, err := normalizeParsedYAMLForJSON(v)
			if err != nil {
				return nil, err
			}
			mapOut[key] = v1
		}
		return mapOut, nil
	default:
		return data, nil
	}
}
