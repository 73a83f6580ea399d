// ABOUTME: Fan-out audit sink writing each entry to several sinks
// ABOUTME: All sinks are attempted; failures are joined

package store

import (
	"context"
	"errors"
)

// Multi writes each entry to every sink in order.
type Multi []AuditLogger

// AppendAuditLog appends to all sinks, joining any errors. The entry's ID
// and Timestamp are fixed before the first sink so every sink records the
// same values.
func (m Multi) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	prepareEntry(e)
	var errs []error
	for _, sink := range m {
		if err := sink.AppendAuditLog(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard is an AuditLogger that drops everything.
var Discard AuditLogger = discard{}

type discard struct{}

func (discard) AppendAuditLog(context.Context, *AuditEntry) error { return nil }
