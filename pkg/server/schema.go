package server

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// toolSchema reflects T into the JSON schema advertised for a tool.
// Fields tagged jsonschema:"required" land in the required list, and
// the struct is expanded in place rather than referenced through $defs.
func toolSchema[T any]() (json.RawMessage, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}
	delete(m, "$schema")
	delete(m, "$id")

	return json.Marshal(m)
}

// decodeArgs maps raw tool arguments onto a typed request struct.
// Decoding is weakly typed so clients that send "5" for an integer or
// a JSON-encoded string for an object field still get through.
func decodeArgs(args map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			jsonStringHook,
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(args)
}

// jsonStringHook decodes string arguments that carry embedded JSON
// into map or slice targets. Some MCP clients double-encode object
// parameters; a string starting with '{' or '[' aimed at a non-string
// field is treated as JSON. Strings that fail to parse fall through
// untouched so the decoder can report the real type mismatch.
func jsonStringHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	if to.Kind() != reflect.Map && to.Kind() != reflect.Slice && to.Kind() != reflect.Struct {
		return data, nil
	}

	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return data, nil
	}

	out := reflect.New(to)
	if err := json.Unmarshal([]byte(trimmed), out.Interface()); err != nil {
		return data, nil
	}
	return out.Elem().Interface(), nil
}
