package sql

import (
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// reservedIdentifiers are rejected even when syntactically valid.
var reservedIdentifiers = map[string]bool{
	"admin":              true,
	"root":               true,
	"sys":                true,
	"system":             true,
	"master":             true,
	"information_schema": true,
}

// allowedTypePatterns is a closed allowlist. Type strings are embedded verbatim in DDL,
// so anything not listed here is rejected.
var allowedTypePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(TINYINT|SMALLINT|MEDIUMINT|INT|INTEGER|BIGINT)(\(\d+\))?$`),
	regexp.MustCompile(`^VARCHAR\(\d+\)$`),
	regexp.MustCompile(`^CHAR\(\d+\)$`),
	regexp.MustCompile(`^(TEXT|MEDIUMTEXT|LONGTEXT)$`),
	regexp.MustCompile(`^(DECIMAL|FLOAT|DOUBLE)(\(\d+(\s*,\s*\d+)?\))?$`),
	regexp.MustCompile(`^(DATE|DATETIME|TIMESTAMP)$`),
	regexp.MustCompile(`^(BOOLEAN|BOOL)$`),
}

var allowedConstraintPrefixes = []string{
	"NOT NULL",
	"NULL",
	"PRIMARY KEY",
	"UNIQUE",
	"AUTO_INCREMENT",
	"DEFAULT",
	"CHECK",
	"FOREIGN KEY",
	"INDEX",
}

var columnPositionRegex = regexp.MustCompile(`(?i)^(FIRST|AFTER\s+([A-Za-z][A-Za-z0-9_]*))$`)

// ValidateIdentifier checks a table or column name against the identifier grammar
// and the reserved-name denylist.
func ValidateIdentifier(name string) error {
	if name == "" {
		return apperrors.NewSpecValidationError("identifier", "name must not be empty")
	}
	if !identifierRegex.MatchString(name) {
		return apperrors.NewSpecValidationError("identifier", "invalid name %q: must start with a letter and contain only letters, digits or underscores", name)
	}
	if reservedIdentifiers[strings.ToLower(name)] {
		return apperrors.NewSpecValidationError("identifier", "name %q is reserved", name)
	}
	return nil
}

// ValidateType checks a column type declaration against the allowlist.
// It returns the normalized (trimmed, uppercased) type on success.
func ValidateType(columnType string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(columnType))
	if normalized == "" {
		return "", apperrors.NewSpecValidationError("type", "column type is required")
	}
	for _, pattern := range allowedTypePatterns {
		if pattern.MatchString(normalized) {
			return normalized, nil
		}
	}
	return "", apperrors.NewSpecValidationError("type", "column type not allowed: %s", columnType)
}

// ValidateConstraint checks a constraint token by prefix against the allowlist.
// Text after the prefix may not terminate the statement, open a comment, or carry a
// command verb.
func ValidateConstraint(constraint string) error {
	trimmed := strings.TrimSpace(constraint)
	upper := strings.ToUpper(trimmed)

	allowed := false
	for _, prefix := range allowedConstraintPrefixes {
		if strings.HasPrefix(upper, prefix) {
			allowed = true
			break
		}
	}
	if !allowed {
		return apperrors.NewSpecValidationError("constraints", "constraint not allowed: %s", constraint)
	}

	for _, marker := range []string{";", "--", "/*", "*/"} {
		if strings.Contains(trimmed, marker) {
			return apperrors.NewSpecValidationError("constraints", "constraint contains forbidden sequence %q: %s", marker, constraint)
		}
	}
	if found := findDangerousCommands(upper); len(found) > 0 {
		return apperrors.NewSpecValidationError("constraints", "constraint contains command %s: %s", found[0], constraint)
	}
	return nil
}

// ValidateOptionName checks MySQL table options such as ENGINE and CHARACTER SET.
func ValidateOptionName(field, value string) error {
	if !identifierRegex.MatchString(value) {
		return apperrors.NewSpecValidationError(field, "invalid value %q", value)
	}
	return nil
}

// ValidateColumnPosition accepts FIRST or AFTER <column> and returns the normalized clause.
func ValidateColumnPosition(position string, d Dialect) (string, error) {
	m := columnPositionRegex.FindStringSubmatch(strings.TrimSpace(position))
	if m == nil {
		return "", apperrors.NewSpecValidationError("position", "must be FIRST or AFTER <column>, got %q", position)
	}
	if m[2] == "" {
		return "FIRST", nil
	}
	if err := ValidateIdentifier(m[2]); err != nil {
		return "", err
	}
	return "AFTER " + EscapeIdentifier(m[2], d), nil
}
