package main

import (
	"os"

	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/options"
	flag "github.com/spf13/pflag"

	"github.com/iotaledger/blockprop/pkg/simulation"
)

func main() {
	opts := parseFlags()

	logger := log.NewLogger()

	sim, err := simulation.New(logger, opts...)
	if err != nil {
		logger.LogErrorf("invalid simulation setup: %s", err)
		os.Exit(1)
	}

	if err := sim.Run(); err != nil {
		logger.LogErrorf("simulation failed: %s", err)
		os.Exit(1)
	}
}

func parseFlags() []options.Option[simulation.Options] {
	defaults := simulation.NewOptions()

	nodes := flag.Int("nodes", defaults.NumberOfNodes, "number of simulated nodes")
	seed := flag.Int64("seed", defaults.Seed, "seed of the run's PRNG")
	interval := flag.Int64("interval", defaults.TargetInterval, "target mean block interval in ms")
	averagePower := flag.Int64("average-mining-power", defaults.AverageMiningPower, "mean of the per-node hash rate distribution")
	stdevPower := flag.Int64("stdev-mining-power", defaults.StdevOfMiningPower, "standard deviation of the per-node hash rate distribution")
	endBlockHeight := flag.Int("end-block-height", defaults.EndBlockHeight, "chain height that ends the simulation")
	blockSize := flag.Int64("block-size", defaults.BlockSize, "full block size in bytes")
	compactBlockSize := flag.Int64("compact-block-size", defaults.CompactBlockSize, "compact block size in bytes")
	cbrUsageRate := flag.Float64("cbr-usage-rate", defaults.CBRUsageRate, "share of nodes supporting compact block relay")
	churnNodeRate := flag.Float64("churn-node-rate", defaults.ChurnNodeRate, "share of nodes that churn")
	cbrFailureControl := flag.Float64("cbr-failure-rate-control", defaults.CBRFailureRateForControlNode, "compact block relay failure rate at control nodes")
	cbrFailureChurn := flag.Float64("cbr-failure-rate-churn", defaults.CBRFailureRateForChurnNode, "compact block relay failure rate at churn nodes")
	difficultyInterval := flag.Int("difficulty-interval", defaults.DifficultyInterval, "blocks between difficulty adjustments, 0 disables")
	observerWindow := flag.Int("observer-window", defaults.ObserverWindow, "blocks tracked by the propagation observer")
	algorithm := flag.String("algo", defaults.Algorithm, "consensus algorithm")
	table := flag.String("table", defaults.Table, "routing table strategy")
	outputDirectory := flag.String("output", defaults.OutputDirectory, "directory the propagation times are written to")

	flag.Parse()

	return []options.Option[simulation.Options]{
		simulation.WithNumberOfNodes(*nodes),
		simulation.WithSeed(*seed),
		simulation.WithTargetInterval(*interval),
		simulation.WithMiningPowerDistribution(*averagePower, *stdevPower),
		simulation.WithEndBlockHeight(*endBlockHeight),
		simulation.WithBlockSize(*blockSize),
		simulation.WithCompactBlockSize(*compactBlockSize),
		simulation.WithCBRUsageRate(*cbrUsageRate),
		simulation.WithChurnNodeRate(*churnNodeRate),
		simulation.WithCBRFailureRates(*cbrFailureControl, *cbrFailureChurn),
		simulation.WithDifficultyInterval(*difficultyInterval),
		simulation.WithObserverWindow(*observerWindow),
		simulation.WithAlgorithm(*algorithm),
		simulation.WithTable(*table),
		simulation.WithOutputDirectory(*outputDirectory),
	}
}
