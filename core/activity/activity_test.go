package activity_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimaro/shulebook/core/activity"
	logsvc "github.com/kimaro/shulebook/services/logger"
	inmemdb "github.com/kimaro/shulebook/storage/database/inmem"
	testutil "github.com/kimaro/shulebook/tests"
)

func Test_Service_RecordAndQuery(t *testing.T) {
	conf := testutil.NewConfig(t)
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "TEST : ", log.LstdFlags|log.Lshortfile),
		conf,
	)
	db := testutil.PrepareDB(t)
	svc := activity.NewService(inmemdb.NewActivityRepository(db), logger)
	ctx := context.Background()

	svc.Record(ctx, activity.TypeFee, "assign", map[string]interface{}{"studentId": "s1"})
	svc.Record(ctx, activity.TypeFee, "payment", map[string]interface{}{"studentId": "s1", "amount": "100"})
	svc.Record(ctx, activity.TypeStudent, "update", map[string]interface{}{"studentId": "s2"})

	t.Run("all entries", func(t *testing.T) {
		entries, err := svc.Query(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})

	t.Run("filter by type", func(t *testing.T) {
		entries, err := svc.Query(ctx, &activity.QueryFilter{Type: activity.TypeFee})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		for _, e := range entries {
			assert.Equal(t, activity.TypeFee, e.Type)
		}
	})

	t.Run("filter by action with limit", func(t *testing.T) {
		entries, err := svc.Query(ctx, &activity.QueryFilter{Action: "payment", Limit: 1})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "payment", entries[0].Action)
		assert.Equal(t, "s1", entries[0].Details["studentId"])
	})
}
