package metrics_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finalitylabs/blocksync/module/irrecoverable"
	"github.com/finalitylabs/blocksync/module/metrics"
	"github.com/finalitylabs/blocksync/utils/unittest"
)

func TestEngineCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewEngineCollector(registry)

	collector.MessageSent(metrics.EngineSynchronization, metrics.MessageRequest)
	collector.MessageSent(metrics.EngineSynchronization, metrics.MessageRequest)
	collector.InboundMessageDropped(metrics.EngineSynchronization, metrics.MessageStateBroadcast)

	count, err := testutil.GatherAndCount(registry, "network_engine_messages_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSyncCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewSyncCollector(registry)

	collector.FinalizedHeight(42)
	collector.TaskScheduled("request")
	collector.TaskScheduled("backup_request")

	count, err := testutil.GatherAndCount(registry, "sync_tasks_scheduled_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestServer(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewSyncCollector(registry)
	collector.FinalizedHeight(7)

	server := metrics.NewServer(unittest.Logger(), "127.0.0.1:0", registry)
	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	server.Start(ctx)
	unittest.RequireCloseBefore(t, server.Ready(), time.Second, "server did not start")

	resp, err := http.Get("http://" + server.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Contains(t, string(body), "sync_finalized_height 7")

	resp, err = http.Post("http://"+server.Addr()+"/metrics", "text/plain", nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	cancel()
	unittest.RequireCloseBefore(t, server.Done(), 10*time.Second, "server did not stop")
}
