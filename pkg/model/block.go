package model

import (
	"math/big"

	"github.com/iotaledger/hive.go/stringify"
)

// BlockID is the stable integer identity of a block. Block equality is
// identity equality; there is no content hashing in the simulation.
type BlockID int64

// Block is the read surface shared by all consensus-specific block types.
// Blocks are immutable after construction and form an append-only DAG through
// their parent links (genesis has no parent).
type Block interface {
	// ID returns the stable identity of the block.
	ID() BlockID

	// ProducerID returns the id of the node that minted the block.
	ProducerID() int

	// Parent returns the parent block, or nil for genesis.
	Parent() Block

	// Height returns the distance from genesis along the parent chain.
	Height() int

	// MintTime returns the virtual time (ms) at which the block was minted.
	MintTime() int64
}

// BlockWithHeight walks the parent chain of the given block and returns its
// ancestor at the requested height, or nil if the height is out of range.
func BlockWithHeight(block Block, height int) Block {
	if block == nil || height < 0 || height > block.Height() {
		return nil
	}

	for block.Height() != height {
		block = block.Parent()
	}

	return block
}

// PoWBlock is a Block minted under Proof of Work. In addition to the common
// identity it carries the difficulty it was mined at, the total difficulty
// accumulated along its chain and the difficulty its children must be mined at.
type PoWBlock struct {
	id              BlockID
	producerID      int
	parent          Block
	height          int
	mintTime        int64
	difficulty      *big.Int
	totalDifficulty *big.Int
	nextDifficulty  *big.Int
}

// NewPoWBlock creates an immutable PoW block. The parent is nil for genesis.
// The total difficulty is derived from the parent chain at construction time.
func NewPoWBlock(id BlockID, parent Block, producerID int, mintTime int64, difficulty *big.Int, nextDifficulty *big.Int) *PoWBlock {
	block := &PoWBlock{
		id:             id,
		producerID:     producerID,
		parent:         parent,
		mintTime:       mintTime,
		difficulty:     new(big.Int).Set(difficulty),
		nextDifficulty: new(big.Int).Set(nextDifficulty),
	}

	block.totalDifficulty = new(big.Int).Set(block.difficulty)
	if parent != nil {
		block.height = parent.Height() + 1

		if powParent, isPoWBlock := parent.(*PoWBlock); isPoWBlock {
			block.totalDifficulty.Add(block.totalDifficulty, powParent.totalDifficulty)
		}
	}

	return block
}

func (b *PoWBlock) ID() BlockID {
	return b.id
}

func (b *PoWBlock) ProducerID() int {
	return b.producerID
}

func (b *PoWBlock) Parent() Block {
	return b.parent
}

func (b *PoWBlock) Height() int {
	return b.height
}

func (b *PoWBlock) MintTime() int64 {
	return b.mintTime
}

// Difficulty returns the difficulty the block was mined at.
func (b *PoWBlock) Difficulty() *big.Int {
	return b.difficulty
}

// TotalDifficulty returns the cumulative difficulty from genesis to this
// block, inclusive.
func (b *PoWBlock) TotalDifficulty() *big.Int {
	return b.totalDifficulty
}

// NextDifficulty returns the difficulty children of this block are mined at.
func (b *PoWBlock) NextDifficulty() *big.Int {
	return b.nextDifficulty
}

func (b *PoWBlock) String() string {
	return stringify.Struct("PoWBlock",
		stringify.NewStructField("ID", int64(b.id)),
		stringify.NewStructField("Producer", b.producerID),
		stringify.NewStructField("Height", b.height),
		stringify.NewStructField("MintTime", b.mintTime),
		stringify.NewStructField("Difficulty", b.difficulty.String()),
		stringify.NewStructField("TotalDifficulty", b.totalDifficulty.String()),
	)
}
