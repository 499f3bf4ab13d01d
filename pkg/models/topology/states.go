package topology

import (
	"strings"

	"github.com/searchgrid/grid/pkg/models/griderror"
)

type ShardState string

const (
	ShardConstruction   = ShardState("construction")
	ShardRecovery       = ShardState("recovery")
	ShardRecoveryFailed = ShardState("recovery_failed")
	ShardActive         = ShardState("active")
	ShardInactive       = ShardState("inactive")
)

type ReplicaState string

const (
	ReplicaDown       = ReplicaState("down")
	ReplicaRecovering = ReplicaState("recovering")
	ReplicaActive     = ReplicaState("active")
)

type ReplicaType string

const (
	ReplicaNRT  = ReplicaType("NRT")
	ReplicaTLOG = ReplicaType("TLOG")
	ReplicaPULL = ReplicaType("PULL")
)

// ReplicaTypes lists replica types in placement order.
var ReplicaTypes = []ReplicaType{ReplicaNRT, ReplicaTLOG, ReplicaPULL}

func ParseReplicaType(s string) (ReplicaType, error) {
	switch strings.ToUpper(s) {
	case "", "NRT":
		return ReplicaNRT, nil
	case "TLOG":
		return ReplicaTLOG, nil
	case "PULL":
		return ReplicaPULL, nil
	default:
		return "", griderror.Newf(griderror.GRID_BAD_REQUEST, "unknown replica type: %s", s)
	}
}

// Letter is the short form used in core names.
func (t ReplicaType) Letter() string {
	switch t {
	case ReplicaTLOG:
		return "t"
	case ReplicaPULL:
		return "p"
	default:
		return "n"
	}
}

func (t ReplicaType) CanBeLeader() bool {
	return t != ReplicaPULL
}
