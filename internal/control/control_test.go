package control

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synchdb/internal/connector"
	"synchdb/internal/model"
)

func startTestServer(t *testing.T, shared *connector.SharedState) (*Client, func()) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "test.sock")
	srv := NewServer(socketPath, shared)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("unix", socketPath)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, time.Second, 5*time.Millisecond, "server never started listening")

	return NewClient(socketPath), func() {
		cancel()
		<-errCh
	}
}

func TestStatusRoundTrips(t *testing.T) {
	shared := connector.New()
	shared.Register("mysql1", 42, model.DialectMySQL)

	client, cleanup := startTestServer(t, shared)
	defer cleanup()

	resp, err := client.Do(Request{Command: CommandStatus, Connector: "mysql1"})
	require.NoError(t, err)
	require.NotNil(t, resp.Snapshot)
	assert.Equal(t, "mysql1", resp.Snapshot.Name)
	assert.Equal(t, 42, resp.Snapshot.PID)
	assert.Equal(t, connector.StateInitializing, resp.Snapshot.State)
}

func TestStatusUnknownConnectorFails(t *testing.T) {
	shared := connector.New()
	client, cleanup := startTestServer(t, shared)
	defer cleanup()

	_, err := client.Do(Request{Command: CommandStatus, Connector: "nope"})
	assert.Error(t, err)
}

func TestPauseSubmitsRequest(t *testing.T) {
	shared := connector.New()
	shared.Register("mysql1", 1, model.DialectMySQL)
	shared.SetState("mysql1", connector.StateSyncing)

	client, cleanup := startTestServer(t, shared)
	defer cleanup()

	resp, err := client.Do(Request{Command: CommandPause, Connector: "mysql1"})
	require.NoError(t, err)
	assert.True(t, resp.OK)

	req, ok := shared.TakeRequest("mysql1")
	require.True(t, ok)
	assert.Equal(t, connector.RequestPause, req.Kind)
}

func TestSetOffsetCarriesOffsetField(t *testing.T) {
	shared := connector.New()
	shared.Register("mysql1", 1, model.DialectMySQL)

	client, cleanup := startTestServer(t, shared)
	defer cleanup()

	resp, err := client.Do(Request{Command: CommandSetOffset, Connector: "mysql1", Offset: "binlog.000005:10"})
	require.NoError(t, err)
	assert.True(t, resp.OK)

	req, ok := shared.TakeRequest("mysql1")
	require.True(t, ok)
	assert.Equal(t, connector.RequestSetOffset, req.Kind)
	assert.Equal(t, "binlog.000005:10", req.Offset)
}

func TestDoubleSubmitFailsOnSecondRequest(t *testing.T) {
	shared := connector.New()
	shared.Register("mysql1", 1, model.DialectMySQL)

	client, cleanup := startTestServer(t, shared)
	defer cleanup()

	_, err := client.Do(Request{Command: CommandPause, Connector: "mysql1"})
	require.NoError(t, err)

	_, err = client.Do(Request{Command: CommandResume, Connector: "mysql1"})
	assert.Error(t, err)
}

func TestUnknownCommandFails(t *testing.T) {
	shared := connector.New()
	shared.Register("mysql1", 1, model.DialectMySQL)

	client, cleanup := startTestServer(t, shared)
	defer cleanup()

	_, err := client.Do(Request{Command: Command("bogus"), Connector: "mysql1"})
	assert.Error(t, err)
}
