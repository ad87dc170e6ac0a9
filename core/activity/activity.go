package activity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kimaro/shulebook/core"
)

// Activity types
const (
	TypeFee     = "fee"
	TypeStudent = "student"
	TypePayment = "payment"
)

// Activity is an append-only audit trail entry.
type Activity struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details"`
	ActorID   string                 `json:"actor_id,omitempty"`
	CreatedAt time.Time              `json:"created_at"` // UTC
}

// QueryFilter applies AND operation on available fields.
type QueryFilter struct {
	Type   string `query:"type"`
	Action string `query:"action"`
	Limit  int    `query:"limit"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Type == "" && qf.Action == "" && qf.Limit == 0
}

type (
	Repository interface {
		CreateActivity(ctx context.Context, act Activity) (Activity, error)
		// FilterActivities returns entries latest-first.
		FilterActivities(ctx context.Context, filter QueryFilter) ([]Activity, error)
	}

	ServiceInterface interface {
		// Record appends an audit entry. Failures are logged, never returned;
		// the audit trail must not break its callers.
		Record(ctx context.Context, typ, action string, details map[string]interface{})
		Query(ctx context.Context, filter *QueryFilter) ([]Activity, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (svc *Service) Record(ctx context.Context, typ, action string, details map[string]interface{}) {
	act := Activity{
		ID:        uuid.New().String(),
		Type:      typ,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := svc.repo.CreateActivity(ctx, act); err != nil {
		svc.logger.Error("recording activity", err, details)
	}
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Activity, error) {
	if filter == nil {
		filter = &QueryFilter{}
	}
	return svc.repo.FilterActivities(ctx, *filter)
}
