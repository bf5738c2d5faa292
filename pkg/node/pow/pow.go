package pow

import (
	"math/big"
	"math/rand"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/runtime/options"

	"github.com/iotaledger/blockprop/pkg/model"
	"github.com/iotaledger/blockprop/pkg/node"
)

const (
	// DefaultTargetInterval is the target mean block interval in ms.
	DefaultTargetInterval = 1000 * 60 * 10

	// DefaultDifficultyInterval is the number of blocks between difficulty
	// adjustments.
	DefaultDifficultyInterval = 2016

	// maxDifficultyBits limits the difficulty to 70 bits, i.e. below 2^70: from
	// 2^70 on, the per-hash success probability is at most 2^-70, too small to
	// sample a waiting time from.
	maxDifficultyBits = 70
)

var (
	ErrIncompatibleTip             = ierrors.New("node tip is not a proof-of-work block")
	ErrInvalidDifficulty           = ierrors.New("difficulty must be positive")
	ErrVanishingSuccessProbability = ierrors.New("success probability is at most 2^-70, check the configured interval and mining power")
	ErrDelayOverflow               = ierrors.New("sampled mining delay does not fit the virtual clock")
)

// Algorithm implements Proof of Work: a geometric waiting time per mining
// attempt, a difficulty schedule targeting a mean block interval and fork
// choice by total difficulty. One instance drives all nodes of a run.
type Algorithm struct {
	rand             *rand.Rand
	totalMiningPower *big.Int
	powerOf          func(nodeID int) int64

	targetInterval     int64
	difficultyInterval int

	nextBlockID model.BlockID
}

// New creates the algorithm for a population whose combined mining power and
// per-node power lookup are given.
func New(rng *rand.Rand, totalMiningPower *big.Int, powerOf func(nodeID int) int64, opts ...options.Option[Algorithm]) *Algorithm {
	return options.Apply(&Algorithm{
		rand:               rng,
		totalMiningPower:   new(big.Int).Set(totalMiningPower),
		powerOf:            powerOf,
		targetInterval:     DefaultTargetInterval,
		difficultyInterval: DefaultDifficultyInterval,
	}, opts)
}

// GenesisBlock mints the shared ancestor of all chains. Its difficulty is
// zero; the difficulty of its children is chosen so that the whole population
// needs the target interval for one block on average.
func (a *Algorithm) GenesisBlock(n *node.Node) model.Block {
	genesisNextDifficulty := new(big.Int).Mul(a.totalMiningPower, big.NewInt(a.targetInterval))

	return model.NewPoWBlock(a.allocateBlockID(), nil, n.ID(), 0, big.NewInt(0), genesisNextDifficulty)
}

// Minting prepares the next mining attempt of the given node on top of its
// current tip.
func (a *Algorithm) Minting(n *node.Node) (*node.MiningTask, error) {
	parent, isPoWBlock := n.Tip().(*model.PoWBlock)
	if !isPoWBlock {
		return nil, ErrIncompatibleTip
	}

	difficulty := parent.NextDifficulty()

	delay, err := a.sampleMiningDelay(difficulty, n.MiningPower())
	if err != nil {
		return nil, ierrors.Wrapf(err, "sampling mining delay at difficulty %s", difficulty)
	}

	return node.NewMiningTask(n, parent, difficulty, delay, a.buildBlock), nil
}

// IsReceivedBlockValid reports whether the received block may replace the
// current one: it must be a PoW block, satisfy its parent's difficulty
// schedule and carry a strictly higher total difficulty than the current tip.
func (a *Algorithm) IsReceivedBlockValid(received model.Block, current model.Block) bool {
	receivedPoW, isPoWBlock := received.(*model.PoWBlock)
	if !isPoWBlock {
		return false
	}

	if receivedPoW.Height() > 0 {
		parent, isPoWBlock := receivedPoW.Parent().(*model.PoWBlock)
		if !isPoWBlock || receivedPoW.Difficulty().Cmp(parent.NextDifficulty()) < 0 {
			return false
		}
	}

	if current == nil {
		return true
	}

	currentPoW, isPoWBlock := current.(*model.PoWBlock)
	if !isPoWBlock {
		return false
	}

	return receivedPoW.TotalDifficulty().Cmp(currentPoW.TotalDifficulty()) > 0
}

// sampleMiningDelay draws the waiting time until the node's next successful
// mining attempt: floor(ln(u) / ln(1-p) / miningPower) with p = 1/difficulty.
// The logarithm ratio is computed on arbitrary-precision floats because
// ln(1-p) vanishes in double precision for the difficulties the simulation
// operates at.
func (a *Algorithm) sampleMiningDelay(difficulty *big.Int, miningPower int64) (int64, error) {
	if difficulty.Sign() <= 0 {
		return 0, ErrInvalidDifficulty
	}
	if difficulty.BitLen() > maxDifficultyBits {
		return 0, ErrVanishingSuccessProbability
	}

	u := a.rand.Float64()

	one := newDecimal().SetInt64(1)
	p := newDecimal().Quo(one, newDecimal().SetInt(difficulty))
	q := newDecimal().Sub(one, p)

	lnU, err := ln(newDecimal().SetFloat64(u))
	if err != nil {
		return 0, err
	}

	lnQ, err := ln(q)
	if err != nil {
		return 0, err
	}

	delay := newDecimal().Quo(lnU, lnQ)
	delay.Quo(delay, newDecimal().SetInt64(miningPower))

	result, _ := delay.Int(nil)
	if !result.IsInt64() {
		return 0, ErrDelayOverflow
	}

	return result.Int64(), nil
}

// buildBlock assembles the block of a completed mining attempt, computing the
// difficulty its children are mined at.
func (a *Algorithm) buildBlock(parent model.Block, producerID int, mintTime int64, difficulty *big.Int) model.Block {
	return model.NewPoWBlock(a.allocateBlockID(), parent, producerID, mintTime, difficulty,
		a.nextDifficulty(parent, producerID, mintTime, difficulty))
}

// nextDifficulty applies the adjustment schedule: every difficultyInterval
// blocks the difficulty is rescaled by the mining power observed over the
// window and the ratio of target to observed interval; in between it stays at
// the block's own difficulty.
func (a *Algorithm) nextDifficulty(parent model.Block, producerID int, mintTime int64, difficulty *big.Int) *big.Int {
	height := parent.Height() + 1
	if a.difficultyInterval <= 0 || height%a.difficultyInterval != 0 {
		return difficulty
	}

	windowStart := model.BlockWithHeight(parent, height-a.difficultyInterval)

	observedInterval := mintTime - windowStart.MintTime()
	if observedInterval < 1 {
		observedInterval = 1
	}

	windowPower := big.NewInt(a.powerOf(producerID))
	for ancestor := parent; ancestor.Height() > windowStart.Height(); ancestor = ancestor.Parent() {
		windowPower.Add(windowPower, big.NewInt(a.powerOf(ancestor.ProducerID())))
	}

	parentDifficulty := difficulty
	if parentPoW, isPoWBlock := parent.(*model.PoWBlock); isPoWBlock {
		parentDifficulty = parentPoW.Difficulty()
	}

	adjusted := new(big.Int).Mul(parentDifficulty, windowPower)
	adjusted.Mul(adjusted, big.NewInt(a.targetInterval))
	adjusted.Div(adjusted, big.NewInt(observedInterval))

	if adjusted.Sign() <= 0 {
		adjusted.SetInt64(1)
	}

	return adjusted
}

func (a *Algorithm) allocateBlockID() model.BlockID {
	id := a.nextBlockID
	a.nextBlockID++

	return id
}

// WithTargetInterval sets the target mean block interval in ms.
func WithTargetInterval(interval int64) options.Option[Algorithm] {
	return func(a *Algorithm) {
		a.targetInterval = interval
	}
}

// WithDifficultyInterval sets the number of blocks between difficulty
// adjustments; zero disables adjustment.
func WithDifficultyInterval(interval int) options.Option[Algorithm] {
	return func(a *Algorithm) {
		a.difficultyInterval = interval
	}
}
