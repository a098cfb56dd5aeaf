package domain

import (
	"strings"
	"time"
)

// Person is a requester or connector.
type Person struct {
	ID       int64
	NickName string
	LastName string
	Email    string
}

// FullName returns "Nick Last".
func (p Person) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.NickName) + " " + strings.TrimSpace(p.LastName))
}

// SortName returns a case-folded "last nick" key.
func (p Person) SortName() string {
	return strings.ToLower(strings.TrimSpace(p.LastName) + " " + strings.TrimSpace(p.NickName))
}

// Campus scopes opportunities and connectors.
type Campus struct {
	ID        int64
	Name      string
	ShortCode string
}

// Workflow is an external process launched for a request. Its presence blocks deletion.
type Workflow struct {
	ID        int64
	RequestID int64
	Name      string
	Status    string
	CreatedAt time.Time
}
