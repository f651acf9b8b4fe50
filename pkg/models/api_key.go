package models

import (
	"time"

	"github.com/google/uuid"
)

// API key scopes.
const (
	ScopeSubmit = "submit"
	ScopeWorker = "worker"
	ScopeAdmin  = "admin"
)

// APIKey authenticates API clients and workers. Only the bcrypt hash is
// stored; the prefix narrows the candidate set on lookup.
type APIKey struct {
	ID         uuid.UUID  `db:"id"           json:"id"`
	Name       string     `db:"name"         json:"name"`
	KeyHash    string     `db:"key_hash"     json:"-"`
	KeyPrefix  string     `db:"key_prefix"   json:"key_prefix"`
	Scopes     []string   `db:"scopes"       json:"scopes"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	DeletedAt  *time.Time `db:"deleted_at"   json:"-"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
}
