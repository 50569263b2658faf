package configstore

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	_, err = conn.Exec(`CREATE TABLE config (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestLoad_SeedsDefaults(t *testing.T) {
	conn := openTestDB(t)
	s, err := Load(conn)
	require.NoError(t, err)
	assert.Equal(t, "mock", s.Get().ScannerMode)
	assert.True(t, s.Get().PairingRequired)
}

func TestUpdate_PersistsAndReloads(t *testing.T) {
	conn := openTestDB(t)
	s, err := Load(conn)
	require.NoError(t, err)

	_, err = s.Update(func(snap *Snapshot) { snap.ScannerMode = "ble"; snap.MinRSSI = -80 })
	require.NoError(t, err)

	reloaded, err := Load(conn)
	require.NoError(t, err)
	assert.Equal(t, "ble", reloaded.Get().ScannerMode)
	assert.Equal(t, -80, reloaded.Get().MinRSSI)
}

func TestSubscribe_ReceivesUpdate(t *testing.T) {
	conn := openTestDB(t)
	s, err := Load(conn)
	require.NoError(t, err)

	ch := s.Subscribe()
	_, err = s.Update(func(snap *Snapshot) { snap.PairingRequired = false })
	require.NoError(t, err)

	select {
	case snap := <-ch:
		assert.False(t, snap.PairingRequired)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive update")
	}
}

func TestSubscribe_FullBufferDropsRatherThanBlocks(t *testing.T) {
	conn := openTestDB(t)
	s, err := Load(conn)
	require.NoError(t, err)

	ch := s.Subscribe()
	// Fill the buffer (capacity 1), then update again; the second update
	// must not block even though nobody drained the channel.
	_, err = s.Update(func(snap *Snapshot) { snap.MinRSSI = -70 })
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		_, _ = s.Update(func(snap *Snapshot) { snap.MinRSSI = -60 })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("update blocked on a full subscriber buffer")
	}
	<-ch
}
