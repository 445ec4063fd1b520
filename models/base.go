package models

import (
	"time"

	"github.com/google/uuid"
)

// NewId returns an application-generated identifier. All ledger entities get
// their ids at construction time; nothing relies on storage-side defaults.
func NewId() string {
	return uuid.NewString()
}

func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
