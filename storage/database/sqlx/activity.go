package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/kimaro/shulebook/core/activity"
)

type activityRow struct {
	ID        string          `db:"id"`
	Type      string          `db:"type"`
	Action    string          `db:"action"`
	Details   json.RawMessage `db:"details"`
	ActorID   *string         `db:"actor_id"`
	CreatedAt time.Time       `db:"created_at"`
}

func (r activityRow) unpack() (activity.Activity, error) {
	act := activity.Activity{
		ID:        r.ID,
		Type:      r.Type,
		Action:    r.Action,
		CreatedAt: r.CreatedAt,
	}
	if r.ActorID != nil {
		act.ActorID = *r.ActorID
	}
	if len(r.Details) > 0 {
		if err := json.Unmarshal(r.Details, &act.Details); err != nil {
			return activity.Activity{}, errors.Wrap(err, "decoding activity details")
		}
	}
	return act, nil
}

type activityRepository struct {
	db *sqlx.DB
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *sqlx.DB) *activityRepository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) CreateActivity(ctx context.Context, act activity.Activity) (activity.Activity, error) {
	details, err := json.Marshal(act.Details)
	if err != nil {
		return activity.Activity{}, errors.Wrap(err, "encoding activity details")
	}
	var actorID *string
	if act.ActorID != "" {
		actorID = &act.ActorID
	}
	const q = `
		INSERT INTO activity (id, type, action, details, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err = repo.db.ExecContext(ctx, q, act.ID, act.Type, act.Action, details, actorID, act.CreatedAt); err != nil {
		return activity.Activity{}, errors.Wrap(err, "inserting activity")
	}
	return act, nil
}

func (repo *activityRepository) FilterActivities(ctx context.Context, filter activity.QueryFilter) ([]activity.Activity, error) {
	q := `SELECT * FROM activity WHERE 1=1`
	args := make([]interface{}, 0, 3)
	if filter.Type != "" {
		args = append(args, filter.Type)
		q += ` AND type = ?`
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		q += ` AND action = ?`
	}
	q += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += ` LIMIT ?`
	}

	var rows []activityRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "filtering activities")
	}
	entries := make([]activity.Activity, 0, len(rows))
	for _, r := range rows {
		act, err := r.unpack()
		if err != nil {
			return nil, err
		}
		entries = append(entries, act)
	}
	return entries, nil
}
