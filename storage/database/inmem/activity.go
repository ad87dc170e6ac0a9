package inmemdb

import (
	"context"
	"sort"

	"github.com/kimaro/shulebook/core/activity"
)

type activityRepository struct {
	db *activityTable
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *DB) *activityRepository {
	return &activityRepository{db: db.activities}
}

func (repo *activityRepository) CreateActivity(_ context.Context, act activity.Activity) (activity.Activity, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.entries = append(repo.db.entries, act)
	return act, nil
}

func (repo *activityRepository) FilterActivities(_ context.Context, filter activity.QueryFilter) ([]activity.Activity, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	entries := make([]activity.Activity, 0, len(repo.db.entries))
	for _, act := range repo.db.entries {
		if filter.Type != "" && act.Type != filter.Type {
			continue
		}
		if filter.Action != "" && act.Action != filter.Action {
			continue
		}
		entries = append(entries, act)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return entries, nil
}
