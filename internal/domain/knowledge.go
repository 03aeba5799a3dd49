package domain

import (
	"time"
)

// KnowledgeEntry maps a normalized question to its answer. At most one entry
// exists per normalized question; resolution of a help request is the only
// path that creates or updates entries.
type KnowledgeEntry struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}
