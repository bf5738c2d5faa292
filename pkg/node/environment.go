package node

import (
	"math/rand"

	"github.com/iotaledger/blockprop/pkg/core/eventqueue"
	"github.com/iotaledger/blockprop/pkg/network"
)

// Environment aggregates the run-wide collaborators every node interacts
// with. A single instance is shared by all nodes of a simulation; threading it
// through explicitly keeps runs parameterizable and free of global state.
type Environment struct {
	Scheduler *eventqueue.Scheduler
	Network   *network.Network
	Rand      *rand.Rand
	Settings  *Settings
	Events    *Events
}

// Settings carries the protocol constants the node state machine consumes.
type Settings struct {
	// BlockSize is the size of a full block in bytes.
	BlockSize int64

	// CompactBlockSize is the size of a compact block announcement in bytes.
	CompactBlockSize int64

	// CBRFailureRateForControlNode is the probability that compact block
	// relay fails at a node that is permanently online.
	CBRFailureRateForControlNode float64

	// CBRFailureRateForChurnNode is the probability that compact block relay
	// fails at a node that churns.
	CBRFailureRateForChurnNode float64
}
