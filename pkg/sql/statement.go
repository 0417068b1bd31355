package sql

import (
	"fmt"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Values is an insertion-ordered column → value mapping. Ordering matters: it decides
// placeholder order, parameter order and confirmation tokens.
type Values = orderedmap.OrderedMap[string, any]

// NewValues builds a Values from alternating key/value arguments.
//
//	NewValues("id", 1, "name", "x")
func NewValues(kv ...any) *Values {
	v := orderedmap.New[string, any]()
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("NewValues: key at position %d is %T, not string", i, kv[i]))
		}
		v.Set(key, kv[i+1])
	}
	return v
}

// Keys returns the mapping's keys in order.
func Keys(v *Values) []string {
	if v == nil {
		return nil
	}
	keys := make([]string, 0, v.Len())
	for pair := v.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Statement is a fully built SQL statement. SQL holds only keywords, escaped
// identifiers, validated type/constraint tokens and placeholders; every data value
// lives in Params.
type Statement struct {
	SQL     string
	Params  []any
	Dialect Dialect
}

// PlaceholderStyle is a driver's native parameter syntax.
type PlaceholderStyle int

const (
	// PlaceholderQuestion is "?" (go-sql-driver/mysql).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar is "$1, $2" (pgx).
	PlaceholderDollar
	// PlaceholderAtP is "@p1, @p2" (go-mssqldb).
	PlaceholderAtP
)

// Rebind returns the statement text with dialect placeholders rewritten in the given
// driver style. The Statement itself is left untouched.
func (s Statement) Rebind(style PlaceholderStyle) (string, error) {
	if len(s.Params) == 0 {
		return s.SQL, nil
	}

	parts := strings.Split(s.SQL, s.Dialect.Placeholder())
	if len(parts)-1 != len(s.Params) {
		return "", fmt.Errorf("statement has %d placeholders but %d parameters", len(parts)-1, len(s.Params))
	}

	var b strings.Builder
	b.Grow(len(s.SQL) + len(s.Params)*3)
	b.WriteString(parts[0])
	for i, part := range parts[1:] {
		switch style {
		case PlaceholderDollar:
			b.WriteString("$" + strconv.Itoa(i+1))
		case PlaceholderAtP:
			b.WriteString("@p" + strconv.Itoa(i+1))
		default:
			b.WriteString("?")
		}
		b.WriteString(part)
	}
	return b.String(), nil
}
