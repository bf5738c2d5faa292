package model

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestChain(t *testing.T, length int) []*PoWBlock {
	t.Helper()

	chain := make([]*PoWBlock, 0, length)

	genesis := NewPoWBlock(0, nil, 0, 0, big.NewInt(0), big.NewInt(100))
	chain = append(chain, genesis)

	for i := 1; i < length; i++ {
		parent := chain[i-1]
		block := NewPoWBlock(BlockID(i), parent, i%3, int64(i)*1000, parent.NextDifficulty(), parent.NextDifficulty())
		chain = append(chain, block)
	}

	return chain
}

func TestPoWBlock_Heights(t *testing.T) {
	chain := newTestChain(t, 5)

	for i, block := range chain {
		require.Equal(t, i, block.Height())
	}

	require.Nil(t, chain[0].Parent())
	require.Equal(t, Block(chain[2]), chain[3].Parent())
}

func TestPoWBlock_TotalDifficulty(t *testing.T) {
	chain := newTestChain(t, 4)

	// genesis carries zero difficulty, every descendant adds its own.
	require.Zero(t, chain[0].TotalDifficulty().Sign())
	require.EqualValues(t, 100, chain[1].TotalDifficulty().Int64())
	require.EqualValues(t, 200, chain[2].TotalDifficulty().Int64())
	require.EqualValues(t, 300, chain[3].TotalDifficulty().Int64())
}

func TestPoWBlock_TotalDifficultyAcrossForks(t *testing.T) {
	chain := newTestChain(t, 3)

	fork := NewPoWBlock(99, chain[1], 2, 1700, big.NewInt(250), big.NewInt(250))
	require.EqualValues(t, 350, fork.TotalDifficulty().Int64())
	require.EqualValues(t, 2, fork.Height())
}

func TestBlockWithHeight(t *testing.T) {
	chain := newTestChain(t, 6)
	tip := chain[len(chain)-1]

	for h := 0; h <= tip.Height(); h++ {
		ancestor := BlockWithHeight(tip, h)
		require.NotNil(t, ancestor)
		require.Equal(t, h, ancestor.Height())
		require.Equal(t, Block(chain[h]), ancestor)
	}
}

func TestBlockWithHeight_OutOfRange(t *testing.T) {
	chain := newTestChain(t, 3)
	tip := chain[len(chain)-1]

	require.Nil(t, BlockWithHeight(tip, -1))
	require.Nil(t, BlockWithHeight(tip, tip.Height()+1))
	require.Nil(t, BlockWithHeight(nil, 0))
}

func TestBlockWithHeight_SelfAndMintTimes(t *testing.T) {
	chain := newTestChain(t, 4)
	tip := chain[len(chain)-1]

	require.Equal(t, Block(tip), BlockWithHeight(tip, tip.Height()))

	// mint times strictly increase along the parent chain.
	for _, block := range chain[1:] {
		require.Less(t, block.Parent().MintTime(), block.MintTime())
	}
}

func TestPoWBlock_Immutability(t *testing.T) {
	difficulty := big.NewInt(100)
	block := NewPoWBlock(1, nil, 0, 0, difficulty, difficulty)

	// mutating the constructor argument must not leak into the block.
	difficulty.SetInt64(9999)
	require.EqualValues(t, 100, block.Difficulty().Int64())
	require.EqualValues(t, 100, block.NextDifficulty().Int64())
}
