package repository

import "context"

// AuditRepository is the append-only compliance sink. Record never fails the
// calling operation; persistence errors are logged and swallowed.
type AuditRepository interface {
	Record(ctx context.Context, action, subjectID, actorIP, result string, details map[string]interface{})
}
