// Package models defines server-side data models persisted in the database.
package models

import "time"

// Directory is one node of a user's folder tree. ParentID is nil for
// top-level directories. The triple (UserID, Name, ParentID) is unique.
type Directory struct {
	ID        string
	UserID    string
	Name      string
	ParentID  *string
	CreatedAt time.Time
}
