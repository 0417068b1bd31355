package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-guard/pkg/services"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// getArgs returns the call arguments, or an empty map.
func getArgs(req mcp.CallToolRequest) map[string]any {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return args
}

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	val, _ := getArgs(req)[key].(string)
	return val
}

// getOptionalFloat extracts an optional numeric argument from the request.
func getOptionalFloat(req mcp.CallToolRequest, key string) (float64, bool) {
	val, ok := getArgs(req)[key].(float64)
	return val, ok
}

// getOptionalBool extracts an optional boolean argument from the request.
func getOptionalBool(req mcp.CallToolRequest, key string) bool {
	val, _ := getArgs(req)[key].(bool)
	return val
}

// getTarget reads db_type and conn_params. conn_params may be absent, in which case
// the service falls back to the environment.
func getTarget(req mcp.CallToolRequest) (services.Target, error) {
	dbType, err := req.RequireString("db_type")
	if err != nil {
		return services.Target{}, apperrors.NewSpecValidationError("db_type", "db_type is required (mysql, postgres or mssql)")
	}
	target := services.Target{DatabaseType: trimString(dbType)}

	switch v := getArgs(req)["conn_params"].(type) {
	case nil:
	case map[string]any:
		target.ConnParams = v
	case string:
		// Some clients send objects as JSON text.
		if trimString(v) != "" {
			if err := json.Unmarshal([]byte(v), &target.ConnParams); err != nil {
				return services.Target{}, apperrors.NewSpecValidationError("conn_params", "must be an object")
			}
		}
	default:
		return services.Target{}, apperrors.NewSpecValidationError("conn_params", "must be an object, got %T", v)
	}
	return target, nil
}

// rawRequestKey carries the undecoded JSON-RPC message for the current call.
type rawRequestKey struct{}

// WithRawRequest attaches the raw JSON-RPC message to ctx. Transports call this before
// dispatch so that object arguments can be decoded in the caller's key order, which
// decides parameter order and delete confirmation tokens.
func WithRawRequest(ctx context.Context, raw []byte) context.Context {
	return context.WithValue(ctx, rawRequestKey{}, raw)
}

// RawRequestFromContext returns the message attached by WithRawRequest.
func RawRequestFromContext(ctx context.Context) ([]byte, bool) {
	raw, ok := ctx.Value(rawRequestKey{}).([]byte)
	return raw, ok
}

type rawToolCall struct {
	Params struct {
		Name      string                     `json:"name"`
		Arguments map[string]json.RawMessage `json:"arguments"`
	} `json:"params"`
}

// rawArgument returns the undecoded argument when the raw message on ctx belongs to
// this call.
func rawArgument(ctx context.Context, req mcp.CallToolRequest, key string) (json.RawMessage, bool) {
	raw, ok := RawRequestFromContext(ctx)
	if !ok {
		return nil, false
	}
	var call rawToolCall
	if err := json.Unmarshal(raw, &call); err != nil || call.Params.Name != req.Params.Name {
		return nil, false
	}
	arg, ok := call.Params.Arguments[key]
	return arg, ok
}

// getValues decodes an object argument into an ordered mapping. Without the raw message
// keys fall back to sorted order, which is still deterministic.
func getValues(ctx context.Context, req mcp.CallToolRequest, key string) (*sqlpkg.Values, error) {
	if raw, ok := rawArgument(ctx, req, key); ok && string(raw) != "null" {
		values, err := decodeValues(raw)
		if err != nil {
			return nil, apperrors.NewSpecValidationError(key, "must be an object")
		}
		return values, nil
	}

	switch v := getArgs(req)[key].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return valuesFromMap(v), nil
	default:
		return nil, apperrors.NewSpecValidationError(key, "must be an object, got %T", v)
	}
}

// getRecords decodes an array-of-objects argument.
func getRecords(ctx context.Context, req mcp.CallToolRequest, key string) ([]*sqlpkg.Values, error) {
	if raw, ok := rawArgument(ctx, req, key); ok && string(raw) != "null" {
		records, err := decodeRecords(raw)
		if err != nil {
			return nil, apperrors.NewSpecValidationError(key, "must be an array of objects")
		}
		return records, nil
	}

	switch v := getArgs(req)[key].(type) {
	case nil:
		return nil, nil
	case []any:
		records := make([]*sqlpkg.Values, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, apperrors.NewSpecValidationError(key, "record %d must be an object, got %T", i, item)
			}
			records[i] = valuesFromMap(m)
		}
		return records, nil
	default:
		return nil, apperrors.NewSpecValidationError(key, "must be an array of objects, got %T", v)
	}
}

func valuesFromMap(m map[string]any) *sqlpkg.Values {
	values := orderedmap.New[string, any]()
	for _, k := range slices.Sorted(maps.Keys(m)) {
		values.Set(k, normalizeNumber(m[k]))
	}
	return values
}

// decodeValues reads one JSON object in key order. Integers stay exact int64 values.
func decodeValues(raw []byte) (*sqlpkg.Values, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return readObject(dec)
}

// decodeRecords reads a JSON array of objects, each in key order.
func decodeRecords(raw []byte) ([]*sqlpkg.Values, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}
	records := []*sqlpkg.Values{}
	for dec.More() {
		record, err := readObject(dec)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, expectDelim(dec, ']')
}

func readObject(dec *json.Decoder) (*sqlpkg.Values, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	values := orderedmap.New[string, any]()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		values.Set(key, normalizeNumber(value))
	}
	return values, expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %v, got %v", want, tok)
	}
	return nil
}

// normalizeNumber turns json.Number into int64 when it is an integer in range and
// float64 otherwise. Integral float64 values from already-decoded arguments become
// int64 too, so both paths bind the same Go types.
func normalizeNumber(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int64(val)
		}
		return val
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeNumber(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalizeNumber(item)
		}
		return val
	default:
		return v
	}
}

// decodeArg re-marshals a structured argument into dst.
func decodeArg(req mcp.CallToolRequest, key string, dst any) error {
	v, ok := getArgs(req)[key]
	if !ok || v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return apperrors.NewSpecValidationError(key, "unreadable value")
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return apperrors.NewSpecValidationError(key, "invalid shape: %v", err)
	}
	return nil
}

// jsonResult marshals v as the text content of a successful result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
