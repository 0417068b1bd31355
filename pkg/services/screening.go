package services

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-guard/pkg/audit"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// CodeSuspiciousValue is the rejection code for a value libinjection flagged.
const CodeSuspiciousValue = "suspicious_value"

// screenValues runs every string value through libinjection. Each hit is audited and
// counted; when RejectSuspiciousValues is set the first hit also rejects the request.
// Values are always bound as parameters, so screening is about visibility first.
func (s *databaseService) screenValues(ctx context.Context, table string, mappings ...*sqlpkg.Values) error {
	hits := sqlpkg.CheckValues(mappings...)
	if len(hits) == 0 {
		return nil
	}

	reject := s.security.RejectSuspiciousValues
	for _, hit := range hits {
		s.auditor.LogInjectionAttempt(ctx, audit.SQLInjectionDetails{
			Table:       table,
			Column:      hit.Column,
			Value:       fmt.Sprint(hit.Value),
			Fingerprint: hit.Fingerprint,
			Rejected:    reject,
		})
		s.metrics.ObserveInjection(reject)
	}

	if reject {
		first := hits[0]
		return &apperrors.SecurityRejection{
			Code:      CodeSuspiciousValue,
			Reason:    fmt.Sprintf("suspicious value detected in column %q: possible SQL injection", first.Column),
			Offending: first.Column,
		}
	}
	return nil
}
