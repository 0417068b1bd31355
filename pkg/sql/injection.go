package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a data value.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Column      string // Column the value was bound to
	Value       any    // The value that was checked
}

// CheckValueForInjection runs libinjection over a value that is about to be bound as a
// statement parameter. Strings and byte slices are checked; other types return nil.
func CheckValueForInjection(column string, value any) *InjectionCheckResult {
	var strValue string
	switch v := value.(type) {
	case string:
		strValue = v
	case []byte:
		strValue = string(v)
	default:
		return nil
	}
	if strValue == "" {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			Column:      column,
			Value:       value,
		}
	}

	return nil
}

// CheckValues screens every value of each mapping, in order.
func CheckValues(mappings ...*Values) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for _, m := range mappings {
		if m == nil {
			continue
		}
		for pair := m.Oldest(); pair != nil; pair = pair.Next() {
			if result := CheckValueForInjection(pair.Key, pair.Value); result != nil {
				results = append(results, result)
			}
		}
	}
	return results
}
