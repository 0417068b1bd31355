package tools

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

func newCallRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func TestTrimString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"whitespace only", "   ", ""},
		{"leading whitespace", "  test", "test"},
		{"trailing whitespace", "test  ", "test"},
		{"both sides whitespace", "  test  ", "test"},
		{"tabs", "\ttest\t", "test"},
		{"newlines", "\ntest\n", "test"},
		{"mixed whitespace", " \t\ntest\n\t ", "test"},
		{"no whitespace", "test", "test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := trimString(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestGetTarget(t *testing.T) {
	t.Run("object conn_params", func(t *testing.T) {
		req := newCallRequest("list_tables", map[string]any{
			"db_type":     " postgres ",
			"conn_params": map[string]any{"server": "db", "port": float64(5433)},
		})
		target, err := getTarget(req)
		require.NoError(t, err)
		assert.Equal(t, "postgres", target.DatabaseType)
		assert.Equal(t, "db", target.ConnParams["server"])
	})

	t.Run("json text conn_params", func(t *testing.T) {
		req := newCallRequest("list_tables", map[string]any{
			"db_type":     "mysql",
			"conn_params": `{"server":"db","user":"app"}`,
		})
		target, err := getTarget(req)
		require.NoError(t, err)
		assert.Equal(t, "app", target.ConnParams["user"])
	})

	t.Run("absent conn_params", func(t *testing.T) {
		target, err := getTarget(newCallRequest("list_tables", map[string]any{"db_type": "mssql"}))
		require.NoError(t, err)
		assert.Nil(t, target.ConnParams)
	})

	t.Run("missing db_type", func(t *testing.T) {
		_, err := getTarget(newCallRequest("list_tables", map[string]any{}))
		require.ErrorIs(t, err, apperrors.ErrSpecValidation)
	})

	t.Run("wrong conn_params type", func(t *testing.T) {
		_, err := getTarget(newCallRequest("list_tables", map[string]any{"db_type": "mysql", "conn_params": 42.0}))
		var specErr *apperrors.SpecValidationError
		require.ErrorAs(t, err, &specErr)
		assert.Equal(t, "conn_params", specErr.Field)
	})
}

func TestGetValues_PreservesRawOrder(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"delete_records",` +
		`"arguments":{"where_conditions":{"zone":"eu","active":true,"id":7}}}}`)
	req := newCallRequest("delete_records", map[string]any{
		"where_conditions": map[string]any{"zone": "eu", "active": true, "id": float64(7)},
	})

	values, err := getValues(WithRawRequest(context.Background(), raw), req, "where_conditions")
	require.NoError(t, err)
	assert.Equal(t, []string{"zone", "active", "id"}, sqlpkg.Keys(values))
}

func TestGetValues_KeepsLargeIntegersExact(t *testing.T) {
	raw := []byte(`{"params":{"name":"delete_records","arguments":{"where_conditions":{"id":9007199254740993,"score":2.5,"tags":[1,2]}}}}`)
	req := newCallRequest("delete_records", map[string]any{
		"where_conditions": map[string]any{"id": float64(9007199254740992), "score": 2.5},
	})

	values, err := getValues(WithRawRequest(context.Background(), raw), req, "where_conditions")
	require.NoError(t, err)

	id, _ := values.Get("id")
	assert.Equal(t, int64(9007199254740993), id)
	score, _ := values.Get("score")
	assert.Equal(t, 2.5, score)
	tags, _ := values.Get("tags")
	assert.Equal(t, []any{int64(1), int64(2)}, tags)
	assert.Equal(t, "DELETE_FROM_users_WHERE_id_9007199254740993_score_2.5_tags_[1 2]",
		sqlpkg.DeleteConfirmation("users", values))
}

func TestGetValues_RejectsMalformedRaw(t *testing.T) {
	raw := []byte(`{"params":{"name":"update_records","arguments":{"set_values":[1,2]}}}`)
	req := newCallRequest("update_records", map[string]any{"set_values": []any{float64(1), float64(2)}})

	_, err := getValues(WithRawRequest(context.Background(), raw), req, "set_values")
	var specErr *apperrors.SpecValidationError
	require.ErrorAs(t, err, &specErr)
	assert.Equal(t, "set_values", specErr.Field)
}

func TestGetValues_SortedWithoutRaw(t *testing.T) {
	req := newCallRequest("delete_records", map[string]any{
		"where_conditions": map[string]any{"zone": "eu", "active": true, "id": float64(7)},
	})

	values, err := getValues(context.Background(), req, "where_conditions")
	require.NoError(t, err)
	assert.Equal(t, []string{"active", "id", "zone"}, sqlpkg.Keys(values))
}

func TestGetValues_IgnoresRawForOtherTool(t *testing.T) {
	raw := []byte(`{"params":{"name":"update_records","arguments":{"set_values":{"b":1,"a":2}}}}`)
	req := newCallRequest("insert_record", map[string]any{
		"set_values": map[string]any{"b": float64(1), "a": float64(2)},
	})

	values, err := getValues(WithRawRequest(context.Background(), raw), req, "set_values")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, sqlpkg.Keys(values))
}

func TestGetValues_Errors(t *testing.T) {
	values, err := getValues(context.Background(), newCallRequest("insert_record", map[string]any{}), "data")
	require.NoError(t, err)
	assert.Nil(t, values)

	_, err = getValues(context.Background(), newCallRequest("insert_record", map[string]any{"data": "x"}), "data")
	require.ErrorIs(t, err, apperrors.ErrSpecValidation)
}

func TestGetRecords(t *testing.T) {
	t.Run("raw order", func(t *testing.T) {
		raw := []byte(`{"params":{"name":"bulk_insert","arguments":{"records":[{"name":"a","age":1},{"name":"b","age":2}]}}}`)
		req := newCallRequest("bulk_insert", map[string]any{"records": []any{}})

		records, err := getRecords(WithRawRequest(context.Background(), raw), req, "records")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, []string{"name", "age"}, sqlpkg.Keys(records[0]))
		v, _ := records[1].Get("name")
		assert.Equal(t, "b", v)
	})

	t.Run("decoded fallback", func(t *testing.T) {
		req := newCallRequest("bulk_insert", map[string]any{
			"records": []any{map[string]any{"name": "a", "age": float64(1)}},
		})
		records, err := getRecords(context.Background(), req, "records")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, []string{"age", "name"}, sqlpkg.Keys(records[0]))
	})

	t.Run("non-object record", func(t *testing.T) {
		req := newCallRequest("bulk_insert", map[string]any{"records": []any{"oops"}})
		_, err := getRecords(context.Background(), req, "records")
		var specErr *apperrors.SpecValidationError
		require.ErrorAs(t, err, &specErr)
		assert.Equal(t, "records", specErr.Field)
	})
}

func TestDecodeArg(t *testing.T) {
	req := newCallRequest("create_table", map[string]any{
		"columns": []any{
			map[string]any{"name": "id", "type": "INT", "constraints": []any{"PRIMARY KEY"}},
		},
	})

	var columns []sqlpkg.ColumnSpec
	require.NoError(t, decodeArg(req, "columns", &columns))
	require.Len(t, columns, 1)
	assert.Equal(t, "id", columns[0].Name)
	assert.Equal(t, []string{"PRIMARY KEY"}, columns[0].Constraints)

	var options sqlpkg.TableOptions
	require.NoError(t, decodeArg(req, "options", &options))
	assert.False(t, options.IfNotExists)

	bad := newCallRequest("create_table", map[string]any{"columns": "id INT"})
	require.ErrorIs(t, decodeArg(bad, "columns", &columns), apperrors.ErrSpecValidation)
}
