package node

import (
	"github.com/iotaledger/hive.go/ds/orderedmap"
	"github.com/iotaledger/hive.go/ds/shrinkingmap"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/stringify"

	"github.com/iotaledger/blockprop/pkg/core/eventqueue"
	"github.com/iotaledger/blockprop/pkg/model"
)

// downloadState tracks the progress of a single block transfer from a peer.
type downloadState uint8

const (
	stateAwaitingCmpctBlock downloadState = iota
	stateAwaitingFullBlock
	stateAwaitingFallback
)

type download struct {
	peer  *Node
	state downloadState
}

// Node is a single participant of the simulated overlay. It owns a chain tip,
// at most one pending mining task and the transfer state of the blocks it is
// currently fetching from its peers.
type Node struct {
	id          int
	region      int
	miningPower int64
	useCBR      bool
	isChurn     bool

	env          *Environment
	consensus    Consensus
	routingTable RoutingTable

	tip        model.Block
	miningTask *eventqueue.ScheduledTask
	downloads  *shrinkingmap.ShrinkingMap[model.BlockID, *download]
	orphans    *orderedmap.OrderedMap[model.BlockID, model.Block]
}

// New creates a node with the given immutable attributes. The routing table is
// attached separately once the whole population exists.
func New(env *Environment, consensus Consensus, id int, region int, miningPower int64, useCBR bool, isChurn bool) *Node {
	return &Node{
		id:          id,
		region:      region,
		miningPower: miningPower,
		useCBR:      useCBR,
		isChurn:     isChurn,
		env:         env,
		consensus:   consensus,
		downloads:   shrinkingmap.New[model.BlockID, *download](),
		orphans:     orderedmap.New[model.BlockID, model.Block](),
	}
}

// ID returns the stable identity of the node.
func (n *Node) ID() int {
	return n.id
}

// Region returns the region index the node lives in.
func (n *Node) Region() int {
	return n.region
}

// MiningPower returns the node's hash rate in hashes per ms.
func (n *Node) MiningPower() int64 {
	return n.miningPower
}

// UseCBR reports whether the node supports compact block relay.
func (n *Node) UseCBR() bool {
	return n.useCBR
}

// IsChurnNode reports whether the node is modeled as intermittently online.
func (n *Node) IsChurnNode() bool {
	return n.isChurn
}

// Tip returns the node's current chain head, or nil before genesis seeding.
func (n *Node) Tip() model.Block {
	return n.tip
}

// RoutingTable returns the node's neighbor-selection strategy.
func (n *Node) RoutingTable() RoutingTable {
	return n.routingTable
}

// SetRoutingTable attaches the neighbor-selection strategy.
func (n *Node) SetRoutingTable(routingTable RoutingTable) {
	n.routingTable = routingTable
}

// SeedGenesis installs the shared genesis block as the node's tip and arms the
// initial mining task.
func (n *Node) SeedGenesis(genesis model.Block) {
	n.tip = genesis
	n.env.Events.BlockArrived.Trigger(n, genesis)
	n.armMiningTask()
}

// receiveInv handles an inventory announcement. A download is started when the
// announced block would replace the current tip and no transfer for it is in
// flight; everything else is dropped.
func (n *Node) receiveInv(from *Node, block model.Block) {
	if _, isOrphaned := n.orphans.Get(block.ID()); isOrphaned {
		return
	}
	if n.downloads.Has(block.ID()) {
		return
	}
	if !n.consensus.IsReceivedBlockValid(block, n.tip) {
		return
	}

	if n.useCBR && from.useCBR {
		n.downloads.Set(block.ID(), &download{peer: from, state: stateAwaitingCmpctBlock})
		newCmpctBlockMessageTask(from, n, block)

		return
	}

	n.downloads.Set(block.ID(), &download{peer: from, state: stateAwaitingFullBlock})
	newBlockMessageTask(from, n, block)
}

// receiveCmpctBlock completes a compact block transfer. Relay failure is drawn
// from the role-specific rate; on failure the node falls back to fetching the
// missing data from the same peer.
func (n *Node) receiveCmpctBlock(from *Node, block model.Block) {
	pending, exists := n.downloads.Get(block.ID())
	if !exists || pending.peer != from || pending.state != stateAwaitingCmpctBlock {
		return
	}

	failureRate := n.env.Settings.CBRFailureRateForControlNode
	if n.isChurn {
		failureRate = n.env.Settings.CBRFailureRateForChurnNode
	}

	if n.env.Rand.Float64() < failureRate {
		pending.state = stateAwaitingFallback
		fallbackSize := n.env.Network.CBRFailureBlockSize(n.isChurn, n.env.Settings.BlockSize)
		newGetBlockTxnMessageTask(n, from, block, fallbackSize)

		return
	}

	n.deliver(block)
}

// receiveGetBlockTxn answers a fallback request with the missing block data.
func (n *Node) receiveGetBlockTxn(from *Node, block model.Block, size int64) {
	newRecBlockTxnMessageTask(n, from, block, size)
}

// receiveRecBlockTxn completes a fallback transfer.
func (n *Node) receiveRecBlockTxn(from *Node, block model.Block) {
	pending, exists := n.downloads.Get(block.ID())
	if !exists || pending.peer != from || pending.state != stateAwaitingFallback {
		return
	}

	n.deliver(block)
}

// receiveBlock completes a full block transfer.
func (n *Node) receiveBlock(from *Node, block model.Block) {
	pending, exists := n.downloads.Get(block.ID())
	if !exists || pending.peer != from || pending.state != stateAwaitingFullBlock {
		return
	}

	n.deliver(block)
}

// deliver ends the transfer of a block and applies fork choice: the block
// either becomes the new tip or is parked as an orphan for later replay.
func (n *Node) deliver(block model.Block) {
	n.downloads.Delete(block.ID())

	if n.consensus.IsReceivedBlockValid(block, n.tip) {
		n.adopt(block)
	} else {
		n.orphans.Set(block.ID(), block)
	}

	n.env.Events.BlockArrived.Trigger(n, block)
}

// mint turns a completed mining attempt into the node's new tip.
func (n *Node) mint(block model.Block) {
	n.miningTask = nil
	n.env.Events.BlockMinted.Trigger(n, block)
	n.adopt(block)
	n.env.Events.BlockArrived.Trigger(n, block)
}

// adopt switches the tip, replays any orphans that the switch made valid and
// arms the next mining attempt on top of the final tip.
func (n *Node) adopt(block model.Block) {
	n.setTip(block)
	n.replayOrphans()
	n.armMiningTask()
}

// setTip installs a new tip: the pending mining task is tombstoned and the
// block is announced to all outbound neighbors.
func (n *Node) setTip(block model.Block) {
	if n.miningTask != nil {
		n.miningTask.Invalidate()
		n.miningTask = nil
	}

	n.tip = block
	n.env.Events.TipUpdated.Trigger(n, block)

	if n.routingTable != nil {
		for _, neighbor := range n.routingTable.Neighbors() {
			newInvMessageTask(n, neighbor, block)
		}
	}
}

// replayOrphans adopts queued orphans that became valid against the current
// tip, in arrival order, until none qualifies anymore.
func (n *Node) replayOrphans() {
	for {
		var next model.Block
		n.orphans.ForEach(func(_ model.BlockID, orphan model.Block) bool {
			if n.consensus.IsReceivedBlockValid(orphan, n.tip) {
				next = orphan

				return false
			}

			return true
		})

		if next == nil {
			return
		}

		n.orphans.Delete(next.ID())
		n.setTip(next)
	}
}

// armMiningTask asks the consensus algorithm for the next mining attempt and
// schedules it. A node never holds more than one pending mining task.
func (n *Node) armMiningTask() {
	miningTask, err := n.consensus.Minting(n)
	if err != nil {
		n.env.Events.Error.Trigger(ierrors.Wrapf(err, "node %d failed to arm a mining task", n.id))

		return
	}

	n.miningTask = n.env.Scheduler.Schedule(miningTask, miningTask.Delay())
}

func (n *Node) String() string {
	return stringify.Struct("Node",
		stringify.NewStructField("ID", n.id),
		stringify.NewStructField("Region", n.region),
		stringify.NewStructField("MiningPower", n.miningPower),
		stringify.NewStructField("UseCBR", n.useCBR),
		stringify.NewStructField("IsChurnNode", n.isChurn),
	)
}
