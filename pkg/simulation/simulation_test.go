package simulation

import (
	"bufio"
	"bytes"
	"math/big"
	"strconv"
	"testing"

	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/blockprop/pkg/model"
	"github.com/iotaledger/blockprop/pkg/network"
	"github.com/iotaledger/blockprop/pkg/node"
)

// singleRegionNetwork pins all nodes into one region with a 100ms mean
// latency and effectively infinite bandwidth.
func singleRegionNetwork(degree int) options.Option[Options] {
	degreeDistribution := make([]float64, degree)
	degreeDistribution[degree-1] = 1

	return WithNetworkOptions(
		network.WithLatencyTable([][]int64{{100}}),
		network.WithBandwidthTables([]int64{1_000_000}, []int64{1_000_000}),
		network.WithRegionDistribution([]float64{1}),
		network.WithDegreeDistribution(degreeDistribution),
	)
}

func outputLines(t *testing.T, out *bytes.Buffer) []int64 {
	t.Helper()

	lines := make([]int64, 0)
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		value, err := strconv.ParseInt(scanner.Text(), 10, 64)
		require.NoError(t, err)
		lines = append(lines, value)
	}
	require.NoError(t, scanner.Err())

	return lines
}

func TestSimulation_SingleNodeProducesEmptyOutput(t *testing.T) {
	out := new(bytes.Buffer)

	sim, err := New(log.NewLogger(),
		WithNumberOfNodes(1),
		WithSeed(1),
		WithEndBlockHeight(3),
		WithTargetInterval(1000),
		WithMiningPowerDistribution(100, 0),
		WithCBRUsageRate(0),
		WithChurnNodeRate(0),
		WithOutput(out),
		singleRegionNetwork(1),
	)
	require.NoError(t, err)
	require.NoError(t, sim.Run())

	// the only node mints every block itself: all delays are zero and zero
	// delays are suppressed.
	require.Empty(t, out.String())
}

func TestSimulation_TwoNodePropagationDelays(t *testing.T) {
	out := new(bytes.Buffer)

	sim, err := New(log.NewLogger(),
		WithNumberOfNodes(2),
		WithSeed(2),
		WithEndBlockHeight(5),
		WithTargetInterval(1_000_000),
		WithMiningPowerDistribution(100, 0),
		WithBlockSize(100),
		WithCompactBlockSize(50),
		WithCBRUsageRate(0),
		WithChurnNodeRate(0),
		WithOutput(out),
		singleRegionNetwork(1),
	)
	require.NoError(t, err)
	require.NoError(t, sim.Run())

	lines := outputLines(t, out)

	// one nonzero line per propagated block on the chain that reached the
	// termination height; the block whose adoption ends the run is still in
	// flight to its peer and yields none.
	require.GreaterOrEqual(t, len(lines), 3)
	require.LessOrEqual(t, len(lines), 5)

	// every arrival pays at least the INV latency and the block transfer
	// latency: two samples of at least (mean - 5) + 10ms processing each.
	for _, delay := range lines {
		require.GreaterOrEqual(t, delay, int64(2*(95+10)))
	}
}

func TestSimulation_ForcedCBRFailureDoublesRoundTrips(t *testing.T) {
	out := new(bytes.Buffer)

	sim, err := New(log.NewLogger(),
		WithNumberOfNodes(2),
		WithSeed(3),
		WithEndBlockHeight(5),
		WithTargetInterval(1_000_000),
		WithMiningPowerDistribution(100, 0),
		WithBlockSize(1000),
		WithCompactBlockSize(100),
		WithCBRUsageRate(1),
		WithChurnNodeRate(0),
		WithCBRFailureRates(1, 1),
		WithOutput(out),
		singleRegionNetwork(1),
	)
	require.NoError(t, err)
	require.NoError(t, sim.Run())

	lines := outputLines(t, out)
	require.NotEmpty(t, lines)

	// INV, compact block, fallback request and fallback delivery: four
	// latency samples before the block is delivered.
	for _, delay := range lines {
		require.GreaterOrEqual(t, delay, int64(4*(95+10)))
	}
}

func TestSimulation_ForkAdoptionInvariants(t *testing.T) {
	sim, err := New(log.NewLogger(),
		WithNumberOfNodes(20),
		WithSeed(4),
		WithEndBlockHeight(30),
		WithTargetInterval(300),
		WithMiningPowerDistribution(100, 0),
		WithBlockSize(100),
		WithCBRUsageRate(0),
		WithChurnNodeRate(0),
		WithOutput(new(bytes.Buffer)),
		singleRegionNetwork(8),
	)
	require.NoError(t, err)

	// per node, every adopted tip must carry strictly more total difficulty
	// than the one before it.
	lastTotalDifficulty := make(map[int]*big.Int)
	lastTip := make(map[int]model.Block)
	branchSwitches := 0

	sim.Events().TipUpdated.Hook(func(n *node.Node, block model.Block) {
		powBlock, isPoWBlock := block.(*model.PoWBlock)
		require.True(t, isPoWBlock)

		if previous, seen := lastTotalDifficulty[n.ID()]; seen {
			require.Positive(t, powBlock.TotalDifficulty().Cmp(previous))

			if block.Parent() != lastTip[n.ID()] {
				branchSwitches++
			}
		}

		lastTotalDifficulty[n.ID()] = powBlock.TotalDifficulty()
		lastTip[n.ID()] = block
	})

	// the virtual clock observed by arrivals never runs backwards.
	lastArrival := int64(0)
	sim.Events().BlockArrived.Hook(func(*node.Node, model.Block) {
		now := sim.CurrentTime()
		require.GreaterOrEqual(t, now, lastArrival)
		lastArrival = now
	})

	require.NoError(t, sim.Run())

	// with a block interval in the order of the network latency, competing
	// branches must have appeared and been switched away from.
	require.Positive(t, branchSwitches)

	// every tip chain is consistent: heights decrease by one and mint times
	// strictly decrease towards genesis.
	for _, n := range sim.Nodes() {
		for block := n.Tip(); block.Parent() != nil; block = block.Parent() {
			require.Equal(t, block.Height()-1, block.Parent().Height())
			require.Less(t, block.Parent().MintTime(), block.MintTime())
		}
	}
}

func TestSimulation_ObserverEvictionFlushesOldRecords(t *testing.T) {
	out := new(bytes.Buffer)

	sim, err := New(log.NewLogger(),
		WithNumberOfNodes(2),
		WithSeed(5),
		WithEndBlockHeight(15),
		WithTargetInterval(1_000_000),
		WithMiningPowerDistribution(100, 0),
		WithBlockSize(100),
		WithCBRUsageRate(0),
		WithChurnNodeRate(0),
		WithObserverWindow(5),
		WithOutput(out),
		singleRegionNetwork(1),
	)
	require.NoError(t, err)
	require.NoError(t, sim.Run())

	// more blocks than the window: the early records were flushed on
	// eviction, the rest on shutdown.
	lines := outputLines(t, out)
	require.GreaterOrEqual(t, len(lines), 12)
	require.LessOrEqual(t, len(lines), 15)
}

func TestSimulation_Determinism(t *testing.T) {
	runOnce := func() string {
		out := new(bytes.Buffer)

		sim, err := New(log.NewLogger(),
			WithNumberOfNodes(50),
			WithSeed(42),
			WithEndBlockHeight(20),
			WithTargetInterval(10_000),
			WithMiningPowerDistribution(100, 10),
			WithOutput(out),
		)
		require.NoError(t, err)
		require.NoError(t, sim.Run())

		return out.String()
	}

	first := runOnce()
	require.NotEmpty(t, first)
	require.Equal(t, first, runOnce())
}

func TestSimulation_MiningPowerTruncatedAtOne(t *testing.T) {
	sim, err := New(log.NewLogger(),
		WithNumberOfNodes(50),
		WithSeed(6),
		WithEndBlockHeight(1),
		WithTargetInterval(1000),
		WithMiningPowerDistribution(10, 1000),
		WithCBRUsageRate(0),
		WithChurnNodeRate(0),
		WithOutput(new(bytes.Buffer)),
		singleRegionNetwork(2),
	)
	require.NoError(t, err)

	for _, n := range sim.Nodes() {
		require.GreaterOrEqual(t, n.MiningPower(), int64(1))
	}
}

func TestSimulation_ConfigurationErrors(t *testing.T) {
	_, err := New(log.NewLogger(), WithNumberOfNodes(0))
	require.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = New(log.NewLogger(), WithAlgorithm("pos"))
	require.ErrorIs(t, err, ErrUnknownAlgorithm)

	_, err = New(log.NewLogger(), WithTable("hypercube"))
	require.ErrorIs(t, err, ErrUnknownTable)

	_, err = New(log.NewLogger(), WithCBRUsageRate(1.5))
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}
