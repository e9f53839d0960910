package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pixperk/quorumlock/pkg/redlock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeers(t *testing.T) {
	id := uuid.New()

	peers, err := parsePeers([]string{id.String() + "@127.0.0.1:7001"})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]string{id: "127.0.0.1:7001"}, peers)

	_, err = parsePeers([]string{"127.0.0.1:7001"})
	assert.Error(t, err)

	_, err = parsePeers([]string{"not-a-uuid@127.0.0.1:7001"})
	assert.Error(t, err)
}

func TestOpenStoreNode(t *testing.T) {
	node, err := openStoreNode(serveFlags{backend: "bolt", dataDir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, node.id)
	require.NoError(t, node.close())

	node, err = openStoreNode(serveFlags{backend: "memory", nodeID: "mem-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "mem-1", node.id)

	_, err = openStoreNode(serveFlags{backend: "etcd"}, nil)
	assert.Error(t, err)
}

func TestRunAcquire(t *testing.T) {
	cfg := redlock.DefaultConfig()
	for i := 0; i < 3; i++ {
		cfg.Stores = append(cfg.Stores, redlock.StoreConfig{Name: fmt.Sprintf("mem-%d", i), Kind: redlock.KindMemory})
	}
	cfg.Counter = redlock.StoreConfig{Name: "mem-0"}

	coord, closeStores, err := redlock.Open(cfg, nil)
	require.NoError(t, err)
	defer closeStores()

	var out bytes.Buffer
	err = runAcquire(context.Background(), &out, coord, "orders", acquireFlags{ttl: time.Second, hold: 10 * time.Millisecond})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "resource:      orders")
	assert.Contains(t, out.String(), "fencing token: 1")
	assert.Contains(t, out.String(), "released (granted)")

	_, held := coord.Holder(context.Background(), "orders")
	assert.False(t, held)
}

func TestAcquireCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quorumlock.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stores:
  - {name: a, kind: memory}
  - {name: b, kind: memory}
  - {name: c, kind: memory}
counter: {name: a}
store_timeout: 100ms
`), 0o644))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"acquire", "orders", "--config", path, "--ttl", "1s", "--hold", "5ms", "--log-level", "error"})

	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "released")
}
