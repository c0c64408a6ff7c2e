package domain

import "time"

// ChangeType is the kind of row mutation carried by a change event.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent is one notification from the live change feed.
// Consumers only rely on its occurrence; the payload is informational.
type ChangeEvent struct {
	Type     ChangeType
	Table    string
	RecordID int64
	UserID   string
	At       time.Time
}
