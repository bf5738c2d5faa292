package node

import (
	"github.com/iotaledger/blockprop/pkg/model"
)

// Consensus is the contract a consensus algorithm fulfills towards the node
// state machine. Implementations live in subpackages (see pow).
type Consensus interface {
	// Minting prepares the next mining attempt of the given node on top of
	// its current tip. The returned task is not yet scheduled.
	Minting(node *Node) (*MiningTask, error)

	// IsReceivedBlockValid reports whether the received block may replace the
	// node's current tip.
	IsReceivedBlockValid(received model.Block, current model.Block) bool

	// GenesisBlock mints the common ancestor of all chains.
	GenesisBlock(node *Node) model.Block
}

// RoutingTable is the neighbor-selection strategy of a node. Topology
// construction is opaque to the state machine; the node only consumes the
// resulting outbound neighbor set.
type RoutingTable interface {
	// Neighbors returns the current outbound neighbors in a stable order.
	Neighbors() []*Node

	// AddNeighbor adds an outbound neighbor, returning false if it was
	// already present or is the node itself.
	AddNeighbor(neighbor *Node) bool

	// RemoveNeighbor drops an outbound neighbor.
	RemoveNeighbor(neighbor *Node) bool
}
