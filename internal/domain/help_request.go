// Package domain contains core domain types for the support-chat backend.
package domain

import (
	"time"
)

// HelpStatus is the lifecycle state of a help request.
type HelpStatus string

const (
	StatusPending    HelpStatus = "pending"
	StatusResolved   HelpStatus = "resolved"
	StatusUnresolved HelpStatus = "unresolved"
)

// IsValid reports whether s is a known help request status.
func (s HelpStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusResolved, StatusUnresolved:
		return true
	}
	return false
}

// HelpRequest is an escalation created when no knowledge base entry matches
// a submitted question. The question is stored exactly as the user typed it
// so supervisors review the original phrasing.
type HelpRequest struct {
	ID         string     `json:"id"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer,omitempty"`
	Status     HelpStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// IsClosed reports whether the request reached a terminal state.
// Resolved and unresolved requests are immutable; there is no re-opening.
func (r *HelpRequest) IsClosed() bool {
	return r.Status == StatusResolved || r.Status == StatusUnresolved
}
