package core

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, rueidis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return mr, client
}

func TestMonitorRoundTrip(t *testing.T) {
	t.Parallel()

	mr, client := newTestClient(t)
	monitor := NewMonitor(client, zaptest.NewLogger(t))
	seen := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)
	monitor.now = func() time.Time { return seen }

	require.NoError(t, monitor.ReportStatus(t.Context(), Status{
		WorkerID:    "w1",
		WorkerType:  "cross_draft",
		CurrentTask: "Idle",
		IsHealthy:   true,
	}))
	assert.Equal(t, HeartbeatTTL, mr.TTL("worker:cross_draft:w1"))

	statuses, err := monitor.GetAllStatuses(t.Context())
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "w1", statuses[0].WorkerID)
	assert.Equal(t, "Idle", statuses[0].CurrentTask)
	assert.True(t, statuses[0].LastSeen.Equal(seen))
	assert.False(t, statuses[0].IsStale(seen.Add(30*time.Second)))
	assert.True(t, statuses[0].IsStale(seen.Add(2*time.Minute)))
}

func TestStatusReporterHeartbeat(t *testing.T) {
	t.Parallel()

	mr, client := newTestClient(t)
	reporter := NewStatusReporter(client, "post_draft", zaptest.NewLogger(t))
	reporter.interval = 10 * time.Millisecond
	reporter.UpdateStatus("Analyzing drafts", 50)
	reporter.SetHealthy(false)
	reporter.RecordWork(3, 1)
	reporter.RecordWork(2, 0)

	reporter.Start(t.Context())

	key := "worker:post_draft:" + reporter.GetWorkerID()
	require.Eventually(t, func() bool { return mr.Exists(key) }, time.Second, 5*time.Millisecond)

	reporter.Stop()
	reporter.Stop()

	statuses, err := reporter.monitor.GetAllStatuses(t.Context())
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, 50, statuses[0].Progress)
	assert.False(t, statuses[0].IsHealthy)
	assert.Equal(t, 5, statuses[0].Processed)
	assert.Equal(t, 1, statuses[0].Failed)
}
