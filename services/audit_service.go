package services

import (
	"encoding/json"
	"fmt"

	"coopledger/models"
	"coopledger/utils"

	"gorm.io/gorm"
)

// AuditService writes append-only before/after records for privileged
// mutations. It replaces the annotation-driven interceptor of older systems
// with an explicit wrapper: callers pass the acting user in, nothing is read
// from global state.
type AuditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditService
func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record writes one audit row. When no actor is present the call is a
// silent no-op: the wrapped operation still ran, it just goes unrecorded.
// Audit persistence failures are logged and never fail the caller.
func (s *AuditService) Record(actor models.Actor, action, entityType string, entityID uint, oldState, newState interface{}) {
	if actor.IsZero() {
		return
	}

	entry := &models.AuditLog{
		UserID:     actor.ID,
		Username:   actor.Username,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		OldState:   serializeState(oldState),
		NewState:   serializeState(newState),
	}

	if err := s.db.Create(entry).Error; err != nil {
		utils.LogError("failed to write audit log for action %s: %v", action, err)
	}
}

// WithAudit runs fn and records its input and output around the call. The
// wrapped function returns its result together with the id of the entity it
// touched. On failure the entry is written with the action suffixed _FAILED
// and the error captured as new state; the original error is returned
// unchanged so auditing never swallows failures.
func (s *AuditService) WithAudit(actor models.Actor, action, entityType string, args interface{}, fn func() (interface{}, uint, error)) (interface{}, error) {
	result, entityID, err := fn()
	if err != nil {
		s.Record(actor, action+"_FAILED", entityType, entityID, args, map[string]string{
			"errorType": fmt.Sprintf("%T", err),
			"message":   err.Error(),
		})
		return nil, err
	}

	s.Record(actor, action, entityType, entityID, args, result)
	return result, nil
}

// serializeState renders a state snapshot as JSON text, falling back to a
// plain string when the value does not marshal.
func serializeState(state interface{}) string {
	if state == nil {
		return ""
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Sprintf("%+v", state)
	}
	return string(data)
}
