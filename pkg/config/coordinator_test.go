package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func writeCfg(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCoordinatorCfgToml(t *testing.T) {
	assert := assert.New(t)

	path := writeCfg(t, "coordinator.toml", `
log_level = "debug"
qdb_addr = "localhost:2379"
state_update_mode = "direct"
request_timeout = "30s"
check_disk_space = true
max_replicas_per_node = 4

[node_addrs]
"node1:8983_grid" = "10.0.0.1:7010"
`)
	_, err := LoadCoordinatorCfg(path)
	assert.NoError(err)

	cfg := CoordinatorConfig()
	assert.Equal("debug", cfg.LogLevel)
	assert.Equal("localhost:2379", cfg.QdbAddr)
	assert.Equal(StateUpdateDirect, cfg.StateUpdateMode)
	assert.Equal(30*time.Second, cfg.RequestTimeout)
	assert.Equal(DefaultLeaderLookupTimeout, cfg.LeaderLookupTimeout)
	assert.True(cfg.CheckDiskSpace)
	assert.Equal(4, cfg.MaxReplicasPerNode)
	assert.Equal("10.0.0.1:7010", cfg.NodeAddrs["node1:8983_grid"])
}

func TestLoadCoordinatorCfgYamlDefaults(t *testing.T) {
	assert := assert.New(t)

	path := writeCfg(t, "coordinator.yaml", "host: coord1\nqdb_type: memory\n")
	out, err := LoadCoordinatorCfg(path)
	assert.NoError(err)
	assert.Contains(out, `"host": "coord1"`)

	cfg := CoordinatorConfig()
	assert.Equal(QdbTypeMemory, cfg.QdbType)
	assert.Equal(StateUpdateSequencer, cfg.StateUpdateMode)
	assert.Equal("info", cfg.LogLevel)
	assert.Equal(DefaultRetryMaxAttempts, cfg.RetryMaxAttempts)
}

func TestLoadCoordinatorCfgUnknownSuffix(t *testing.T) {
	path := writeCfg(t, "coordinator.ini", "x=1")
	_, err := LoadCoordinatorCfg(path)
	assert.Error(t, err)
}

func TestValueOrDefault(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(time.Second, ValueOrDefaultDuration(0, time.Second))
	assert.Equal(time.Minute, ValueOrDefaultDuration(time.Minute, time.Second))
	assert.Equal(3, ValueOrDefaultInt(0, 3))
	assert.Equal("a", ValueOrDefaultString("", "a"))
}
