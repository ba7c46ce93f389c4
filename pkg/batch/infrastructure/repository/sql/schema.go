package sql

import (
	"time"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
)

const (
	sessionTable = "collection_session"
	ledgerTable  = "ledger_entry"
)

// CollectionSessionEntity is the persisted form of model.SessionRecord.
// A scope holds at most one in_progress session (uq_collection_session_active_scope).
type CollectionSessionEntity struct {
	ID             string `gorm:"primaryKey;size:36"`
	Kind           string `gorm:"size:32;not null"`
	Scope          string `gorm:"size:255;not null;index:idx_collection_session_scope_status;uniqueIndex:uq_collection_session_active_scope,where:status = 'in_progress'"`
	TotalItems     int    `gorm:"not null"`
	CompletedItems int    `gorm:"not null"`
	Status         string `gorm:"size:16;not null;index:idx_collection_session_scope_status"`
	StartTime      time.Time
	CompletionTime *time.Time
	Notes          string `gorm:"type:text"`
	Version        int    `gorm:"not null"`
	LastUpdated    time.Time
}

func (CollectionSessionEntity) TableName() string {
	return sessionTable
}

// LedgerEntryEntity is the persisted form of model.LedgerEntry.
type LedgerEntryEntity struct {
	SessionID     string       `gorm:"primaryKey;size:36"`
	ItemID        string       `gorm:"primaryKey;size:128"`
	Kind          string       `gorm:"size:32;not null"`
	Sequence      int          `gorm:"not null"`
	Params        model.Params `gorm:"type:text"`
	Status        string       `gorm:"size:16;not null;index"`
	FailureCount  int          `gorm:"not null"`
	LastAttemptAt *time.Time
	FailureReason string `gorm:"type:text"`
	Version       int    `gorm:"not null"`
}

func (LedgerEntryEntity) TableName() string {
	return ledgerTable
}

// statusCount is one row of the per-status aggregate over a session's ledger.
type statusCount struct {
	Status string
	Total  int
}
