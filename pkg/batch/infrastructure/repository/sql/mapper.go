package sql

import (
	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
)

func fromDomainSession(s *model.SessionRecord) *CollectionSessionEntity {
	if s == nil {
		return nil
	}
	return &CollectionSessionEntity{
		ID:             s.ID,
		Kind:           string(s.Kind),
		Scope:          s.Scope,
		TotalItems:     s.TotalItems,
		CompletedItems: s.CompletedItems,
		Status:         string(s.Status),
		StartTime:      s.StartTime,
		CompletionTime: s.CompletionTime,
		Notes:          s.Notes,
		Version:        s.Version,
		LastUpdated:    s.LastUpdated,
	}
}

func toDomainSession(e *CollectionSessionEntity) *model.SessionRecord {
	if e == nil {
		return nil
	}
	return &model.SessionRecord{
		ID:             e.ID,
		Kind:           model.ItemKind(e.Kind),
		Scope:          e.Scope,
		TotalItems:     e.TotalItems,
		CompletedItems: e.CompletedItems,
		Status:         model.SessionStatus(e.Status),
		StartTime:      e.StartTime,
		CompletionTime: e.CompletionTime,
		Notes:          e.Notes,
		Version:        e.Version,
		LastUpdated:    e.LastUpdated,
	}
}

func toDomainSessions(entities []CollectionSessionEntity) []*model.SessionRecord {
	sessions := make([]*model.SessionRecord, 0, len(entities))
	for i := range entities {
		sessions = append(sessions, toDomainSession(&entities[i]))
	}
	return sessions
}

func fromDomainEntry(e *model.LedgerEntry) *LedgerEntryEntity {
	if e == nil {
		return nil
	}
	return &LedgerEntryEntity{
		SessionID:     e.SessionID,
		ItemID:        e.ItemID,
		Kind:          string(e.Kind),
		Sequence:      e.Sequence,
		Params:        e.Params,
		Status:        string(e.Status),
		FailureCount:  e.FailureCount,
		LastAttemptAt: e.LastAttemptAt,
		FailureReason: e.FailureReason,
		Version:       e.Version,
	}
}

func toDomainEntry(e *LedgerEntryEntity) *model.LedgerEntry {
	if e == nil {
		return nil
	}
	return &model.LedgerEntry{
		SessionID:     e.SessionID,
		ItemID:        e.ItemID,
		Kind:          model.ItemKind(e.Kind),
		Sequence:      e.Sequence,
		Params:        e.Params,
		Status:        model.EntryStatus(e.Status),
		FailureCount:  e.FailureCount,
		LastAttemptAt: e.LastAttemptAt,
		FailureReason: e.FailureReason,
		Version:       e.Version,
	}
}
