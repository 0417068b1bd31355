package sql

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
)

func TestBuildUpdate(t *testing.T) {
	stmt, err := BuildUpdate(UpdateSpec{
		Table: "users",
		Set:   NewValues("name", "x"),
		Where: NewValues("id", 1),
	}, DialectMySQL)
	require.NoError(t, err)

	assert.Equal(t, "UPDATE `users` SET `name` = %s WHERE `id` = %s", stmt.SQL)
	assert.Equal(t, []any{"x", 1}, stmt.Params)
}

func TestBuildUpdate_Dialects(t *testing.T) {
	spec := UpdateSpec{
		Table: "accounts",
		Set:   NewValues("status", "closed", "balance", 0),
		Where: NewValues("owner", "bob", "region", "eu"),
	}

	tests := []struct {
		dialect Dialect
		want    string
	}{
		{DialectMySQL, "UPDATE `accounts` SET `status` = %s, `balance` = %s WHERE `owner` = %s AND `region` = %s"},
		{DialectPostgres, `UPDATE "accounts" SET "status" = %s, "balance" = %s WHERE "owner" = %s AND "region" = %s`},
		{DialectMSSQL, "UPDATE [accounts] SET [status] = ?, [balance] = ? WHERE [owner] = ? AND [region] = ?"},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			stmt, err := BuildUpdate(spec, tt.dialect)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.SQL)
			assert.Equal(t, []any{"closed", 0, "bob", "eu"}, stmt.Params)
		})
	}
}

func TestBuildUpdate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		spec UpdateSpec
	}{
		{"no where", UpdateSpec{Table: "users", Set: NewValues("a", 1)}},
		{"empty where", UpdateSpec{Table: "users", Set: NewValues("a", 1), Where: NewValues()}},
		{"no set", UpdateSpec{Table: "users", Where: NewValues("id", 1)}},
		{"bad set column", UpdateSpec{Table: "users", Set: NewValues("a = 1 --", 1), Where: NewValues("id", 1)}},
		{"bad where column", UpdateSpec{Table: "users", Set: NewValues("a", 1), Where: NewValues("1=1 OR id", 1)}},
		{"bad table", UpdateSpec{Table: "root", Set: NewValues("a", 1), Where: NewValues("id", 1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildUpdate(tt.spec, DialectMySQL)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrSpecValidation))
		})
	}
}

func TestBuildDeleteAndCount(t *testing.T) {
	where := NewValues("status", "inactive", "verified", false)

	del, err := BuildDelete(DeleteSpec{Table: "users", Where: where}, DialectPostgres)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users" WHERE "status" = %s AND "verified" = %s`, del.SQL)
	assert.Equal(t, []any{"inactive", false}, del.Params)

	count, err := BuildCount("users", where, DialectPostgres)
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "users" WHERE "status" = %s AND "verified" = %s`, count.SQL)
	assert.Equal(t, del.Params, count.Params)

	_, err = BuildDelete(DeleteSpec{Table: "users"}, DialectPostgres)
	assert.Error(t, err)
}

func TestBuild_ValuesNeverAppearInSQL(t *testing.T) {
	hostile := "'; DROP TABLE users; --"

	upd, err := BuildUpdate(UpdateSpec{Table: "users", Set: NewValues("name", hostile), Where: NewValues("id", hostile)}, DialectMySQL)
	require.NoError(t, err)
	assert.NotContains(t, upd.SQL, hostile)
	assert.Equal(t, strings.Count(upd.SQL, "%s"), len(upd.Params))

	del, err := BuildDelete(DeleteSpec{Table: "users", Where: NewValues("name", hostile)}, DialectMSSQL)
	require.NoError(t, err)
	assert.NotContains(t, del.SQL, hostile)
	assert.Equal(t, strings.Count(del.SQL, "?"), len(del.Params))

	ins, err := BuildInsert("users", NewValues("name", hostile, "bio", hostile), DialectPostgres)
	require.NoError(t, err)
	assert.NotContains(t, ins.SQL, hostile)
	assert.Equal(t, strings.Count(ins.SQL, "%s"), len(ins.Params))
}

func TestBuildInsert(t *testing.T) {
	stmt, err := BuildInsert("users", NewValues("name", "Alice", "age", 30), DialectMySQL)
	require.NoError(t, err)

	assert.Equal(t, "INSERT INTO `users` (`name`, `age`) VALUES (%s, %s)", stmt.SQL)
	assert.Equal(t, []any{"Alice", 30}, stmt.Params)
}

func TestBuildBulkInsert_Batches(t *testing.T) {
	records := make([]*Values, 250)
	for i := range records {
		records[i] = NewValues("id", i, "label", fmt.Sprintf("row-%d", i))
	}

	stmts, err := BuildBulkInsert(InsertSpec{Table: "items", Records: records}, 100, DialectMSSQL)
	require.NoError(t, err)
	require.Len(t, stmts, 3)

	assert.Len(t, stmts[0].Params, 200)
	assert.Len(t, stmts[1].Params, 200)
	assert.Len(t, stmts[2].Params, 100)

	assert.True(t, strings.HasPrefix(stmts[2].SQL, "INSERT INTO [items] ([id], [label]) VALUES (?, ?), (?, ?)"))
	assert.Equal(t, 50, strings.Count(stmts[2].SQL, "(?, ?)"))
	assert.Equal(t, 200, stmts[2].Params[0])
	assert.Equal(t, "row-249", stmts[2].Params[99])
}

func TestBuildBulkInsert_ColumnOrderFromFirstRecord(t *testing.T) {
	records := []*Values{
		NewValues("a", 1, "b", 2),
		NewValues("b", 20, "a", 10),
	}

	stmts, err := BuildBulkInsert(InsertSpec{Table: "t", Records: records}, 10, DialectMySQL)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t, "INSERT INTO `t` (`a`, `b`) VALUES (%s, %s), (%s, %s)", stmts[0].SQL)
	assert.Equal(t, []any{1, 2, 10, 20}, stmts[0].Params)
}

func TestBuildBulkInsert_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		records   []*Values
		batchSize int
	}{
		{"no records", nil, 10},
		{"mismatched keys", []*Values{NewValues("a", 1, "b", 2), NewValues("a", 1, "c", 2)}, 10},
		{"missing key", []*Values{NewValues("a", 1, "b", 2), NewValues("a", 1)}, 10},
		{"extra key", []*Values{NewValues("a", 1), NewValues("a", 1, "b", 2)}, 10},
		{"empty first record", []*Values{NewValues()}, 10},
		{"bad column", []*Values{NewValues("a b", 1)}, 10},
		{"zero batch", []*Values{NewValues("a", 1)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts, err := BuildBulkInsert(InsertSpec{Table: "t", Records: tt.records}, tt.batchSize, DialectMySQL)
			require.Error(t, err)
			assert.Nil(t, stmts)
		})
	}
}
