package sql

import (
	"strings"

	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
)

// ColumnSpec describes one column of a CREATE or ALTER TABLE request.
type ColumnSpec struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Constraints []string `json:"constraints,omitempty"`
	// Position is MySQL only: FIRST or AFTER <column>.
	Position string `json:"position,omitempty"`
	// NewName is used by RENAME_COLUMN.
	NewName string `json:"new_name,omitempty"`
}

// TableOptions carries dialect-specific CREATE TABLE flags.
type TableOptions struct {
	IfNotExists bool   `json:"if_not_exists,omitempty"`
	Engine      string `json:"engine,omitempty"`  // MySQL
	Charset     string `json:"charset,omitempty"` // MySQL
}

// TableSpec describes a CREATE TABLE request.
type TableSpec struct {
	Name    string       `json:"table_name"`
	Columns []ColumnSpec `json:"columns"`
	Options TableOptions `json:"options"`
}

// AlterOperation is one of the supported ALTER TABLE forms.
type AlterOperation string

const (
	AlterAddColumn    AlterOperation = "ADD_COLUMN"
	AlterDropColumn   AlterOperation = "DROP_COLUMN"
	AlterModifyColumn AlterOperation = "MODIFY_COLUMN"
	AlterRenameColumn AlterOperation = "RENAME_COLUMN"
)

// ParseAlterOperation accepts the operation name case-insensitively. The short forms
// ADD, DROP, MODIFY and RENAME are also accepted.
func ParseAlterOperation(s string) (AlterOperation, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name != "" && !strings.HasSuffix(name, "_COLUMN") {
		name += "_COLUMN"
	}
	switch op := AlterOperation(name); op {
	case AlterAddColumn, AlterDropColumn, AlterModifyColumn, AlterRenameColumn:
		return op, nil
	}
	return "", apperrors.NewSpecValidationError("operation", "unsupported operation %q (expected ADD_COLUMN, DROP_COLUMN, MODIFY_COLUMN or RENAME_COLUMN)", s)
}

// columnDefinition validates a column and renders "<name> <TYPE> <constraints>".
func columnDefinition(col ColumnSpec, d Dialect) (string, error) {
	if err := ValidateIdentifier(col.Name); err != nil {
		return "", err
	}
	colType, err := ValidateType(col.Type)
	if err != nil {
		return "", err
	}

	def := EscapeIdentifier(col.Name, d) + " " + colType
	if len(col.Constraints) > 0 {
		constraints := make([]string, 0, len(col.Constraints))
		for _, c := range col.Constraints {
			if err := ValidateConstraint(c); err != nil {
				return "", err
			}
			constraints = append(constraints, strings.TrimSpace(c))
		}
		def += " " + strings.Join(constraints, " ")
	}
	return def, nil
}

// BuildCreateTable validates every column before emitting anything, so one bad column
// aborts the whole statement.
func BuildCreateTable(spec TableSpec, d Dialect) (Statement, error) {
	if err := ValidateIdentifier(spec.Name); err != nil {
		return Statement{}, err
	}
	if len(spec.Columns) == 0 {
		return Statement{}, apperrors.NewSpecValidationError("columns", "at least one column is required")
	}

	seen := make(map[string]bool, len(spec.Columns))
	defs := make([]string, 0, len(spec.Columns))
	for _, col := range spec.Columns {
		key := strings.ToLower(col.Name)
		if seen[key] {
			return Statement{}, apperrors.NewSpecValidationError("columns", "duplicate column %q", col.Name)
		}
		seen[key] = true

		def, err := columnDefinition(col, d)
		if err != nil {
			return Statement{}, err
		}
		defs = append(defs, def)
	}

	var b strings.Builder
	switch {
	case spec.Options.IfNotExists && d == DialectMSSQL:
		// T-SQL has no CREATE TABLE IF NOT EXISTS. The name is a validated identifier.
		b.WriteString("IF OBJECT_ID(N'" + spec.Name + "', N'U') IS NULL CREATE TABLE")
	case spec.Options.IfNotExists:
		b.WriteString("CREATE TABLE IF NOT EXISTS")
	default:
		b.WriteString("CREATE TABLE")
	}
	b.WriteString(" " + EscapeIdentifier(spec.Name, d) + " (\n  ")
	b.WriteString(strings.Join(defs, ",\n  "))
	b.WriteString("\n)")

	if d == DialectMySQL {
		if spec.Options.Engine != "" {
			if err := ValidateOptionName("engine", spec.Options.Engine); err != nil {
				return Statement{}, err
			}
			b.WriteString(" ENGINE=" + spec.Options.Engine)
		}
		if spec.Options.Charset != "" {
			if err := ValidateOptionName("charset", spec.Options.Charset); err != nil {
				return Statement{}, err
			}
			b.WriteString(" CHARACTER SET " + spec.Options.Charset)
		}
	}

	return Statement{SQL: b.String(), Dialect: d}, nil
}

// BuildAlterTable emits one ALTER TABLE statement for the given operation.
func BuildAlterTable(table string, op AlterOperation, col ColumnSpec, d Dialect) (Statement, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	if err := ValidateIdentifier(col.Name); err != nil {
		return Statement{}, err
	}

	escapedColumn := EscapeIdentifier(col.Name, d)
	sql := "ALTER TABLE " + EscapeIdentifier(table, d)

	switch op {
	case AlterAddColumn:
		def, err := columnDefinition(col, d)
		if err != nil {
			return Statement{}, err
		}
		if d == DialectMSSQL {
			sql += " ADD " + def
		} else {
			sql += " ADD COLUMN " + def
		}
		if col.Position != "" && d == DialectMySQL {
			position, err := ValidateColumnPosition(col.Position, d)
			if err != nil {
				return Statement{}, err
			}
			sql += " " + position
		}

	case AlterDropColumn:
		sql += " DROP COLUMN " + escapedColumn

	case AlterModifyColumn:
		colType, err := ValidateType(col.Type)
		if err != nil {
			return Statement{}, err
		}
		switch d {
		case DialectMySQL:
			sql += " MODIFY COLUMN " + escapedColumn + " " + colType
		case DialectPostgres:
			sql += " ALTER COLUMN " + escapedColumn + " TYPE " + colType
		default:
			sql += " ALTER COLUMN " + escapedColumn + " " + colType
		}

	case AlterRenameColumn:
		if err := ValidateIdentifier(col.NewName); err != nil {
			return Statement{}, err
		}
		if d == DialectMSSQL {
			// SQL Server has no RENAME COLUMN; sp_rename takes the names as arguments.
			return Statement{
				SQL:     "EXEC sp_rename " + d.Placeholder() + ", " + d.Placeholder() + ", 'COLUMN'",
				Params:  []any{table + "." + col.Name, col.NewName},
				Dialect: d,
			}, nil
		}
		escapedNew := EscapeIdentifier(col.NewName, d)
		if d == DialectMySQL {
			colType, err := ValidateType(col.Type)
			if err != nil {
				return Statement{}, err
			}
			sql += " CHANGE COLUMN " + escapedColumn + " " + escapedNew + " " + colType
		} else {
			sql += " RENAME COLUMN " + escapedColumn + " TO " + escapedNew
		}

	default:
		return Statement{}, apperrors.NewSpecValidationError("operation", "unsupported operation %q", op)
	}

	return Statement{SQL: sql, Dialect: d}, nil
}

// BuildDropTable emits DROP TABLE [IF EXISTS] <table>.
func BuildDropTable(table string, ifExists bool, d Dialect) (Statement, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	sql := "DROP TABLE"
	if ifExists {
		sql += " IF EXISTS"
	}
	return Statement{SQL: sql + " " + EscapeIdentifier(table, d), Dialect: d}, nil
}
