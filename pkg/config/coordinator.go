package config

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

const (
	StateUpdateSequencer = "sequencer"
	StateUpdateDirect    = "direct"

	QdbTypeEtcd   = "etcd"
	QdbTypeMemory = "memory"
)

const (
	DefaultRequestTimeout       = 180 * time.Second
	DefaultLeaderLookupTimeout  = 10 * time.Second
	DefaultRecoveryStateTimeout = 60 * time.Second
	DefaultFinalStateTimeout    = 60 * time.Second
	DefaultRetryBaseDelay       = 200 * time.Millisecond
	DefaultRetryMaxAttempts     = 3
)

var cfgCoordinator Coordinator

type Coordinator struct {
	LogLevel      string `json:"log_level" toml:"log_level" yaml:"log_level"`
	PrettyLogging bool   `json:"pretty_logging" toml:"pretty_logging" yaml:"pretty_logging"`
	LogFile       string `json:"log_file" toml:"log_file" yaml:"log_file"`

	QdbType          string `json:"qdb_type" toml:"qdb_type" yaml:"qdb_type"`
	QdbAddr          string `json:"qdb_addr" toml:"qdb_addr" yaml:"qdb_addr"`
	MemqdbBackupPath string `json:"memqdb_backup_path" toml:"memqdb_backup_path" yaml:"memqdb_backup_path"`
	QdbSessionTTL    int64  `json:"qdb_session_ttl" toml:"qdb_session_ttl" yaml:"qdb_session_ttl"`

	Host        string `json:"host" toml:"host" yaml:"host"`
	GrpcApiPort string `json:"grpc_api_port" toml:"grpc_api_port" yaml:"grpc_api_port"`
	HttpApiPort string `json:"http_api_port" toml:"http_api_port" yaml:"http_api_port"`

	StateUpdateMode string `json:"state_update_mode" toml:"state_update_mode" yaml:"state_update_mode"`

	RequestTimeout       time.Duration `json:"request_timeout" toml:"request_timeout" yaml:"request_timeout"`
	LeaderLookupTimeout  time.Duration `json:"leader_lookup_timeout" toml:"leader_lookup_timeout" yaml:"leader_lookup_timeout"`
	RecoveryStateTimeout time.Duration `json:"recovery_state_timeout" toml:"recovery_state_timeout" yaml:"recovery_state_timeout"`
	FinalStateTimeout    time.Duration `json:"final_state_timeout" toml:"final_state_timeout" yaml:"final_state_timeout"`

	CheckDiskSpace     bool `json:"check_disk_space" toml:"check_disk_space" yaml:"check_disk_space"`
	MaxReplicasPerNode int  `json:"max_replicas_per_node" toml:"max_replicas_per_node" yaml:"max_replicas_per_node"`

	RetryMaxAttempts int           `json:"retry_max_attempts" toml:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelay   time.Duration `json:"retry_base_delay" toml:"retry_base_delay" yaml:"retry_base_delay"`

	// NodeAddrs maps a node name to its core admin gRPC address. Nodes
	// missing here are dialed by name.
	NodeAddrs map[string]string `json:"node_addrs" toml:"node_addrs" yaml:"node_addrs"`
}

// LoadCoordinatorCfg loads the coordinator configuration from cfgPath and
// returns it rendered as indented JSON.
func LoadCoordinatorCfg(cfgPath string) (string, error) {
	var ccfg Coordinator
	file, err := os.Open(cfgPath)
	if err != nil {
		cfgCoordinator = ccfg
		return "", err
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			log.Fatalf("failed to close config file: %v", err)
		}
	}(file)

	if err := initConfig(file, &ccfg); err != nil {
		cfgCoordinator = ccfg
		return "", err
	}
	ccfg.applyDefaults()
	cfgCoordinator = ccfg

	configBytes, err := json.MarshalIndent(&cfgCoordinator, "", "  ")
	if err != nil {
		return "", err
	}

	return string(configBytes), nil
}

func (c *Coordinator) applyDefaults() {
	c.LogLevel = ValueOrDefaultString(c.LogLevel, "info")
	c.QdbType = ValueOrDefaultString(c.QdbType, QdbTypeEtcd)
	c.StateUpdateMode = ValueOrDefaultString(c.StateUpdateMode, StateUpdateSequencer)
	c.GrpcApiPort = ValueOrDefaultString(c.GrpcApiPort, "7003")
	c.HttpApiPort = ValueOrDefaultString(c.HttpApiPort, "7004")
	c.RequestTimeout = ValueOrDefaultDuration(c.RequestTimeout, DefaultRequestTimeout)
	c.LeaderLookupTimeout = ValueOrDefaultDuration(c.LeaderLookupTimeout, DefaultLeaderLookupTimeout)
	c.RecoveryStateTimeout = ValueOrDefaultDuration(c.RecoveryStateTimeout, DefaultRecoveryStateTimeout)
	c.FinalStateTimeout = ValueOrDefaultDuration(c.FinalStateTimeout, DefaultFinalStateTimeout)
	c.RetryMaxAttempts = ValueOrDefaultInt(c.RetryMaxAttempts, DefaultRetryMaxAttempts)
	c.RetryBaseDelay = ValueOrDefaultDuration(c.RetryBaseDelay, DefaultRetryBaseDelay)
	if c.QdbSessionTTL == 0 {
		c.QdbSessionTTL = 10
	}
}

// CoordinatorConfig returns a pointer to the Coordinator configuration.
func CoordinatorConfig() *Coordinator {
	return &cfgCoordinator
}
