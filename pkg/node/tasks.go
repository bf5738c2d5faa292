package node

import (
	"math/big"

	"github.com/iotaledger/blockprop/pkg/core/eventqueue"
	"github.com/iotaledger/blockprop/pkg/model"
)

// MessageTask is a task that models a message in flight between two nodes.
// Messages self-schedule at creation time; their delay is sampled from the
// network model, so two messages on the same link may overtake each other.
type MessageTask interface {
	eventqueue.Task

	// From returns the sending node.
	From() *Node

	// To returns the receiving node.
	To() *Node
}

type messageTask struct {
	from *Node
	to   *Node
}

func (m *messageTask) From() *Node {
	return m.from
}

func (m *messageTask) To() *Node {
	return m.to
}

// InvMessageTask announces a block to a peer. It only carries the
// announcement; the receiver decides whether to start a transfer.
type InvMessageTask struct {
	messageTask
	block model.Block
}

func newInvMessageTask(from *Node, to *Node, block model.Block) *InvMessageTask {
	task := &InvMessageTask{messageTask{from: from, to: to}, block}
	to.env.Scheduler.Schedule(task, to.env.Network.MessageLatency(from.region, to.region))

	return task
}

func (t *InvMessageTask) Execute() {
	t.to.receiveInv(t.from, t.block)
}

// CmpctBlockMessageTask delivers a compact block; its delay includes the
// transfer time of the compact representation.
type CmpctBlockMessageTask struct {
	messageTask
	block model.Block
}

func newCmpctBlockMessageTask(from *Node, to *Node, block model.Block) *CmpctBlockMessageTask {
	task := &CmpctBlockMessageTask{messageTask{from: from, to: to}, block}
	to.env.Scheduler.Schedule(task, to.env.Network.DownloadTime(from.region, to.region, to.env.Settings.CompactBlockSize))

	return task
}

func (t *CmpctBlockMessageTask) Execute() {
	t.to.receiveCmpctBlock(t.from, t.block)
}

// BlockMessageTask delivers a full block; its delay includes the transfer
// time of the full block size.
type BlockMessageTask struct {
	messageTask
	block model.Block
}

func newBlockMessageTask(from *Node, to *Node, block model.Block) *BlockMessageTask {
	task := &BlockMessageTask{messageTask{from: from, to: to}, block}
	to.env.Scheduler.Schedule(task, to.env.Network.DownloadTime(from.region, to.region, to.env.Settings.BlockSize))

	return task
}

func (t *BlockMessageTask) Execute() {
	t.to.receiveBlock(t.from, t.block)
}

// GetBlockTxnMessageTask requests the data missing after a failed compact
// block relay. It is latency-only.
type GetBlockTxnMessageTask struct {
	messageTask
	block model.Block
	size  int64
}

func newGetBlockTxnMessageTask(from *Node, to *Node, block model.Block, size int64) *GetBlockTxnMessageTask {
	task := &GetBlockTxnMessageTask{messageTask{from: from, to: to}, block, size}
	to.env.Scheduler.Schedule(task, to.env.Network.MessageLatency(from.region, to.region))

	return task
}

func (t *GetBlockTxnMessageTask) Execute() {
	t.to.receiveGetBlockTxn(t.from, t.block, t.size)
}

// RecBlockTxnMessageTask delivers the data requested after a failed compact
// block relay; its delay includes the transfer time of the sampled fallback
// size.
type RecBlockTxnMessageTask struct {
	messageTask
	block model.Block
	size  int64
}

func newRecBlockTxnMessageTask(from *Node, to *Node, block model.Block, size int64) *RecBlockTxnMessageTask {
	task := &RecBlockTxnMessageTask{messageTask{from: from, to: to}, block, size}
	to.env.Scheduler.Schedule(task, to.env.Network.DownloadTime(from.region, to.region, size))

	return task
}

func (t *RecBlockTxnMessageTask) Execute() {
	t.to.receiveRecBlockTxn(t.from, t.block)
}

// BlockBuilder constructs a consensus-specific block for a completed mining
// attempt. Consensus implementations supply it when preparing a MiningTask.
type BlockBuilder func(parent model.Block, producerID int, mintTime int64, difficulty *big.Int) model.Block

// MiningTask is a node's pending mining attempt. When it executes it mints a
// new block on top of its parent, unless the node's tip moved in the meantime,
// in which case it is a no-op (the handle is additionally tombstoned on tip
// changes, this check covers tasks that were already dequeued).
type MiningTask struct {
	node       *Node
	parent     model.Block
	difficulty *big.Int
	delay      int64
	build      BlockBuilder
}

// NewMiningTask creates a mining attempt for the given node. The task is
// scheduled by the node when it arms it.
func NewMiningTask(node *Node, parent model.Block, difficulty *big.Int, delay int64, build BlockBuilder) *MiningTask {
	return &MiningTask{
		node:       node,
		parent:     parent,
		difficulty: difficulty,
		delay:      delay,
		build:      build,
	}
}

// Delay returns the sampled waiting time of the attempt in virtual ms.
func (t *MiningTask) Delay() int64 {
	return t.delay
}

// Parent returns the block the attempt extends.
func (t *MiningTask) Parent() model.Block {
	return t.parent
}

func (t *MiningTask) Execute() {
	if t.node.tip != t.parent {
		return
	}

	block := t.build(t.parent, t.node.id, t.node.env.Scheduler.CurrentTime(), t.difficulty)
	t.node.mint(block)
}
