package sql

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
)

const (
	dropTableConfirmationPrefix = "DELETE_TABLE_"
	deleteConfirmationPrefix    = "DELETE_FROM_"
)

// DropTableConfirmation derives the token required to drop table.
func DropTableConfirmation(table string) string {
	return dropTableConfirmationPrefix + table
}

// DeleteConfirmation derives the token required to delete rows from table. Pairs are
// rendered as key_value in the where mapping's iteration order and joined by underscores.
func DeleteConfirmation(table string, where *Values) string {
	var parts []string
	if where != nil {
		for pair := where.Oldest(); pair != nil; pair = pair.Next() {
			parts = append(parts, pair.Key+"_"+FormatConfirmationValue(pair.Value))
		}
	}
	return deleteConfirmationPrefix + table + "_WHERE_" + strings.Join(parts, "_")
}

// FormatConfirmationValue renders a where value the same way every time. Integral numbers
// drop the decimal point so JSON 123 becomes "123".
func FormatConfirmationValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case string:
		return val
	case bool:
		if val {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := val.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// CheckDropTableConfirmation compares the submitted token byte-for-byte.
func CheckDropTableConfirmation(table, got string) error {
	expected := DropTableConfirmation(table)
	if got != expected {
		return &apperrors.ConfirmationMismatch{Expected: expected, Got: got, Hint: expected}
	}
	return nil
}

// CheckDeleteConfirmation compares the submitted token byte-for-byte. The error only
// hints at the token's shape so callers have to derive it deliberately.
func CheckDeleteConfirmation(table string, where *Values, got string) error {
	expected := DeleteConfirmation(table, where)
	if got != expected {
		return &apperrors.ConfirmationMismatch{
			Expected: expected,
			Got:      got,
			Hint:     deleteConfirmationPrefix + table + "_WHERE_...",
		}
	}
	return nil
}
