package audit

import (
	"context"
	"testing"

	"github.com/kasogane/guildhall/model"
	"github.com/kasogane/guildhall/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLog_FlushedOnStop(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())

	svc.Log(Entry{
		TraceID:  "t1",
		PlayerID: "p1",
		GuildID:  "g1",
		Action:   "guild.create",
		Detail:   map[string]string{"name": "Knights"},
		IP:       "127.0.0.1",
	})
	svc.Log(Entry{
		TraceID:  "t2",
		PlayerID: "p2",
		Action:   "guild.join",
		Error:    "guild is full",
	})

	// Stop drains the queue before returning.
	svc.Stop(context.Background())

	var logs []model.AuditLog
	require.NoError(t, db.Order("id").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, "guild.create", logs[0].Action)
	assert.Contains(t, string(logs[0].Detail), "Knights")
	assert.Equal(t, "guild is full", logs[1].Error)
}

func TestStop_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())
	svc.Stop(context.Background())
	svc.Stop(context.Background())
}
