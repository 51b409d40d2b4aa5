package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// AuditAction enumerates administrative mutations recorded in the ledger.
type AuditAction string

const (
	AuditActionCreate        AuditAction = "CREATE"
	AuditActionUpdate        AuditAction = "UPDATE"
	AuditActionDelete        AuditAction = "DELETE"
	AuditActionImport        AuditAction = "IMPORT"
	AuditActionResolveReport AuditAction = "RESOLVE_REPORT"
)

// AuditEntityType names the kind of entity an audit entry refers to.
type AuditEntityType string

const AuditEntityCurriculum AuditEntityType = "CURRICULUM"

// AuditLogEntry is an immutable record of one administrative mutation.
type AuditLogEntry struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	UserName   string          `json:"userName"`
	Action     AuditAction     `json:"action"`
	EntityType AuditEntityType `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Details    string          `json:"details"`
	Timestamp  time.Time       `json:"timestamp"`
	Snapshot   *AuditSnapshot  `json:"snapshot,omitempty"`
}

// EntityState is implemented only by entity types the ledger knows how to snapshot.
type EntityState interface {
	auditEntityType() AuditEntityType
}

func (CurriculumStandard) auditEntityType() AuditEntityType { return AuditEntityCurriculum }

// AuditSnapshot holds the full entity state around a mutation. Both sides share one entity type.
type AuditSnapshot struct {
	Before EntityState
	After  EntityState
}

// EntityType reports the entity type carried by the snapshot.
func (s AuditSnapshot) EntityType() AuditEntityType {
	switch {
	case s.Before != nil:
		return s.Before.auditEntityType()
	case s.After != nil:
		return s.After.auditEntityType()
	default:
		return ""
	}
}

// CurriculumBefore returns the prior curriculum state when present.
func (s AuditSnapshot) CurriculumBefore() (*CurriculumStandard, bool) {
	c, ok := s.Before.(CurriculumStandard)
	if !ok {
		return nil, false
	}
	return &c, true
}

// CurriculumAfter returns the new curriculum state when present.
func (s AuditSnapshot) CurriculumAfter() (*CurriculumStandard, bool) {
	c, ok := s.After.(CurriculumStandard)
	if !ok {
		return nil, false
	}
	return &c, true
}

type snapshotEnvelope struct {
	EntityType AuditEntityType `json:"entityType"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

// MarshalJSON tags the snapshot with its entity type.
func (s AuditSnapshot) MarshalJSON() ([]byte, error) {
	env := snapshotEnvelope{EntityType: s.EntityType()}
	if env.EntityType == "" {
		env.EntityType = AuditEntityCurriculum
	}
	var err error
	if s.Before != nil {
		if env.Before, err = json.Marshal(s.Before); err != nil {
			return nil, err
		}
	}
	if s.After != nil {
		if env.After, err = json.Marshal(s.After); err != nil {
			return nil, err
		}
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes the snapshot, rejecting entity types outside the closed set.
func (s *AuditSnapshot) UnmarshalJSON(data []byte) error {
	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if env.EntityType == "" {
		env.EntityType = AuditEntityCurriculum
	}
	switch env.EntityType {
	case AuditEntityCurriculum:
		s.Before, s.After = nil, nil
		if len(env.Before) > 0 && string(env.Before) != "null" {
			var before CurriculumStandard
			if err := json.Unmarshal(env.Before, &before); err != nil {
				return fmt.Errorf("decode snapshot before: %w", err)
			}
			s.Before = before
		}
		if len(env.After) > 0 && string(env.After) != "null" {
			var after CurriculumStandard
			if err := json.Unmarshal(env.After, &after); err != nil {
				return fmt.Errorf("decode snapshot after: %w", err)
			}
			s.After = after
		}
		return nil
	default:
		return fmt.Errorf("unsupported snapshot entity type %q", env.EntityType)
	}
}

// AuditFilter narrows ledger listings; zero values match everything.
type AuditFilter struct {
	Action   AuditAction
	EntityID string
	UserID   string
	Limit    int
}
