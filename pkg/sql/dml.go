package sql

import (
	"slices"
	"strings"

	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
)

// UpdateSpec describes an UPDATE ... SET ... WHERE request.
type UpdateSpec struct {
	Table string
	Set   *Values
	Where *Values
}

// DeleteSpec describes a DELETE ... WHERE request.
type DeleteSpec struct {
	Table string
	Where *Values
}

// InsertSpec describes a multi-row INSERT. Column order comes from the first record.
type InsertSpec struct {
	Table   string
	Records []*Values
}

// whereClause renders "k1 = ph AND k2 = ph" and returns the where values in order.
// UPDATE, DELETE and COUNT share it so the pre-count and the mutation always target
// the same rows.
func whereClause(where *Values, d Dialect) (string, []any, error) {
	if where == nil || where.Len() == 0 {
		return "", nil, apperrors.NewSpecValidationError("where_conditions", "WHERE conditions are required")
	}
	clauses := make([]string, 0, where.Len())
	params := make([]any, 0, where.Len())
	for pair := where.Oldest(); pair != nil; pair = pair.Next() {
		if err := ValidateIdentifier(pair.Key); err != nil {
			return "", nil, err
		}
		clauses = append(clauses, EscapeIdentifier(pair.Key, d)+" = "+d.Placeholder())
		params = append(params, pair.Value)
	}
	return strings.Join(clauses, " AND "), params, nil
}

// BuildUpdate emits UPDATE t SET a = ph, ... WHERE k = ph AND ...
// Params are the set values followed by the where values.
func BuildUpdate(spec UpdateSpec, d Dialect) (Statement, error) {
	if err := ValidateIdentifier(spec.Table); err != nil {
		return Statement{}, err
	}
	if spec.Set == nil || spec.Set.Len() == 0 {
		return Statement{}, apperrors.NewSpecValidationError("set_values", "at least one value to set is required")
	}

	sets := make([]string, 0, spec.Set.Len())
	params := make([]any, 0, spec.Set.Len())
	for pair := spec.Set.Oldest(); pair != nil; pair = pair.Next() {
		if err := ValidateIdentifier(pair.Key); err != nil {
			return Statement{}, err
		}
		sets = append(sets, EscapeIdentifier(pair.Key, d)+" = "+d.Placeholder())
		params = append(params, pair.Value)
	}

	where, whereParams, err := whereClause(spec.Where, d)
	if err != nil {
		return Statement{}, err
	}

	return Statement{
		SQL:     "UPDATE " + EscapeIdentifier(spec.Table, d) + " SET " + strings.Join(sets, ", ") + " WHERE " + where,
		Params:  append(params, whereParams...),
		Dialect: d,
	}, nil
}

// BuildDelete emits DELETE FROM t WHERE ...
func BuildDelete(spec DeleteSpec, d Dialect) (Statement, error) {
	if err := ValidateIdentifier(spec.Table); err != nil {
		return Statement{}, err
	}
	where, params, err := whereClause(spec.Where, d)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		SQL:     "DELETE FROM " + EscapeIdentifier(spec.Table, d) + " WHERE " + where,
		Params:  params,
		Dialect: d,
	}, nil
}

// BuildCount emits the SELECT COUNT(*) pre-flight for an UPDATE or DELETE.
func BuildCount(table string, where *Values, d Dialect) (Statement, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	clause, params, err := whereClause(where, d)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		SQL:     "SELECT COUNT(*) FROM " + EscapeIdentifier(table, d) + " WHERE " + clause,
		Params:  params,
		Dialect: d,
	}, nil
}

// ValidateRecords checks that every record carries exactly the first record's keys and
// that those keys are valid identifiers. It returns the column order.
func ValidateRecords(records []*Values) ([]string, error) {
	if len(records) == 0 {
		return nil, apperrors.NewSpecValidationError("records", "at least one record is required")
	}
	columns := Keys(records[0])
	if len(columns) == 0 {
		return nil, apperrors.NewSpecValidationError("records", "record 0 has no columns")
	}
	for _, col := range columns {
		if err := ValidateIdentifier(col); err != nil {
			return nil, err
		}
	}

	want := slices.Sorted(slices.Values(columns))
	for i, rec := range records[1:] {
		got := slices.Sorted(slices.Values(Keys(rec)))
		if !slices.Equal(want, got) {
			return nil, apperrors.NewSpecValidationError("records", "record %d has columns %v, expected %v", i+1, Keys(rec), columns)
		}
	}
	return columns, nil
}

// BuildInsert emits a single-row INSERT.
func BuildInsert(table string, record *Values, d Dialect) (Statement, error) {
	stmts, err := BuildBulkInsert(InsertSpec{Table: table, Records: []*Values{record}}, 1, d)
	if err != nil {
		return Statement{}, err
	}
	return stmts[0], nil
}

// BuildBulkInsert validates all records up front, then emits one multi-row INSERT per
// batch of at most batchSize records.
func BuildBulkInsert(spec InsertSpec, batchSize int, d Dialect) ([]Statement, error) {
	if err := ValidateIdentifier(spec.Table); err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		return nil, apperrors.NewSpecValidationError("batch_size", "must be positive, got %d", batchSize)
	}
	columns, err := ValidateRecords(spec.Records)
	if err != nil {
		return nil, err
	}

	escaped := make([]string, len(columns))
	for i, col := range columns {
		escaped[i] = EscapeIdentifier(col, d)
	}
	rowPlaceholders := "(" + strings.TrimSuffix(strings.Repeat(d.Placeholder()+", ", len(columns)), ", ") + ")"
	prefix := "INSERT INTO " + EscapeIdentifier(spec.Table, d) + " (" + strings.Join(escaped, ", ") + ") VALUES "

	stmts := make([]Statement, 0, (len(spec.Records)+batchSize-1)/batchSize)
	for start := 0; start < len(spec.Records); start += batchSize {
		end := min(start+batchSize, len(spec.Records))
		batch := spec.Records[start:end]

		rows := make([]string, len(batch))
		params := make([]any, 0, len(batch)*len(columns))
		for i, rec := range batch {
			rows[i] = rowPlaceholders
			for _, col := range columns {
				v, _ := rec.Get(col)
				params = append(params, v)
			}
		}
		stmts = append(stmts, Statement{
			SQL:     prefix + strings.Join(rows, ", "),
			Params:  params,
			Dialect: d,
		})
	}
	return stmts, nil
}
