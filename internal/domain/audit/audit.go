package audit

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ActionPayrollRun      = "payroll.run"
	ActionPayrollFinalize = "payroll.finalize"
	ActionPayrollReopen   = "payroll.reopen"

	EntityPayrollPeriod = "payroll_period"
)

type Event struct {
	TenantID   string `json:"tenantId"`
	ActorID    string `json:"actorId"`
	Action     string `json:"action"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	RequestID  string `json:"requestId"`
	IP         string `json:"ip"`
	Before     any    `json:"before,omitempty"`
	After      any    `json:"after,omitempty"`
}

// Recorder persists audit events. Implementations must not retain Event.
type Recorder interface {
	Record(ctx context.Context, evt Event) error
}

type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, evt Event) error {
	beforeJSON, err := marshalOptional(evt.Before)
	if err != nil {
		return err
	}
	afterJSON, err := marshalOptional(evt.After)
	if err != nil {
		return err
	}

	_, err = s.DB.Exec(ctx, `
    INSERT INTO audit_events (tenant_id, actor_user_id, action, entity_type, entity_id, before_json, after_json, request_id, ip)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  `, evt.TenantID, evt.ActorID, evt.Action, evt.EntityType, evt.EntityID, beforeJSON, afterJSON, evt.RequestID, evt.IP)
	return err
}

func marshalOptional(value any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}

// Nop discards events; used where no audit trail is configured.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }
