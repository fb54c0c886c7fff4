package journal

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/headpose"
	"github.com/teslashibe/go-vigil/pkg/monitor"
)

var t0 = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "vigil.db"), log.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpen_MigratesSchema(t *testing.T) {
	j := openTestJournal(t)

	version, dirty, err := j.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vigil.db")

	j, err := Open(path, log.Discard())
	require.NoError(t, err)
	require.NoError(t, j.OpenSession(context.Background(), "s1", t0, nil))
	require.NoError(t, j.Close())

	j, err = Open(path, log.Discard())
	require.NoError(t, err)
	defer j.Close()

	sessions, err := j.Sessions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)
}

func TestSessions_Lifecycle(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	cfg := map[string]float64{"ear_threshold": 0.26}
	require.NoError(t, j.OpenSession(ctx, "s1", t0, cfg))
	require.NoError(t, j.OpenSession(ctx, "s2", t0.Add(time.Hour), nil))
	require.NoError(t, j.CloseSession(ctx, "s1", t0.Add(30*time.Minute)))

	assert.ErrorIs(t, j.CloseSession(ctx, "missing", t0), ErrSessionNotFound)

	sessions, err := j.Sessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, "s2", sessions[0].ID, "newest first")
	assert.Nil(t, sessions[0].EndedAt)
	assert.Nil(t, sessions[0].Config)

	s1 := sessions[1]
	require.NotNil(t, s1.EndedAt)
	assert.True(t, s1.EndedAt.Equal(t0.Add(30*time.Minute)))
	assert.True(t, s1.StartedAt.Equal(t0))

	var got map[string]float64
	require.NoError(t, json.Unmarshal(s1.Config, &got))
	assert.Equal(t, 0.26, got["ear_threshold"])
}

func TestRecordTransition(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	trs := []monitor.Transition{
		{Session: "s1", At: t0, From: drowsiness.NotDrowsy, To: drowsiness.Medium, Perclos: 0.3, Direction: headpose.Forward},
		{Session: "s1", At: t0.Add(time.Second), From: drowsiness.Medium, To: drowsiness.Critical, Perclos: 0.45, Direction: headpose.Forward},
		{Session: "s1", At: t0.Add(2 * time.Second), From: drowsiness.Critical, To: drowsiness.Distraction, Perclos: 0, Direction: headpose.Left},
	}
	for _, tr := range trs {
		require.NoError(t, j.RecordTransition(ctx, tr))
	}

	recent, err := j.RecentTransitions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, drowsiness.Distraction, recent[0].To)
	assert.Equal(t, headpose.Left, recent[0].Direction)
	assert.Equal(t, drowsiness.Critical, recent[1].To)
	assert.InDelta(t, 0.45, recent[1].Perclos, 1e-9)

	all, err := j.SessionTransitions(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].At.Equal(t0), "oldest first")

	// The session row was created on demand.
	sessions, err := j.Sessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)
}

func TestOpenSession_AfterEarlyTransition(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	// A transition lands before the session is opened.
	tr := monitor.Transition{Session: "s1", At: t0.Add(time.Second), From: drowsiness.NotDrowsy, To: drowsiness.Distraction, Direction: headpose.Left}
	require.NoError(t, j.RecordTransition(ctx, tr))
	require.NoError(t, j.OpenSession(ctx, "s1", t0, map[string]float64{"ear_threshold": 0.3}))

	sessions, err := j.Sessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].StartedAt.Equal(t0), "earliest start wins")

	var got map[string]float64
	require.NoError(t, json.Unmarshal(sessions[0].Config, &got))
	assert.Equal(t, 0.3, got["ear_threshold"])

	// Reopening without a config keeps the stored one.
	require.NoError(t, j.OpenSession(ctx, "s1", t0.Add(time.Minute), nil))
	sessions, err = j.Sessions(ctx, 0)
	require.NoError(t, err)
	assert.NotNil(t, sessions[0].Config)
	assert.True(t, sessions[0].StartedAt.Equal(t0))
}

func TestRecentTransitions_Empty(t *testing.T) {
	j := openTestJournal(t)
	events, err := j.RecentTransitions(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, clampLimit(0))
	assert.Equal(t, DefaultLimit, clampLimit(-5))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, MaxLimit, clampLimit(MaxLimit+1))
}

func TestRecorder_WritesMonitorTransitions(t *testing.T) {
	j := openTestJournal(t)
	mon, err := monitor.New(monitor.DefaultConfig(), monitor.WithLogger(log.Discard()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	rec := j.Attach(ctx, mon)

	// Hold the head left past the lateral timeout, then come back.
	at := t0
	for i := 0; i < 80; i++ {
		mon.Observe(monitor.Sample{At: at, EAR: 0.3, Direction: headpose.Left})
		at = at.Add(50 * time.Millisecond)
	}
	mon.Observe(monitor.Sample{At: at, EAR: 0.3, Direction: headpose.Forward})

	cancel()
	select {
	case <-rec.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not stop")
	}

	events, err := j.SessionTransitions(context.Background(), mon.Session())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, drowsiness.Distraction, events[0].To)
	assert.Equal(t, drowsiness.NotDrowsy, events[1].To)
	assert.Zero(t, rec.Dropped())
}
