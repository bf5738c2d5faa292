package simulation

import (
	"io"

	"github.com/iotaledger/hive.go/runtime/options"

	"github.com/iotaledger/blockprop/pkg/network"
	"github.com/iotaledger/blockprop/pkg/observer"
)

// Strategy identifiers resolvable by the simulation.
const (
	AlgorithmProofOfWork = "pow"
	TableUniform         = "uniform"
)

// Options are the knobs of a simulation run. The defaults reproduce the
// Bitcoin network between March 1 and April 13, 2021 (node counts and block
// statistics from Bitnodes.io and blockchain.com).
type Options struct {
	// NumberOfNodes is the size of the simulated population.
	NumberOfNodes int

	// Seed initializes the single PRNG every stochastic decision of the run
	// consumes from.
	Seed int64

	// TargetInterval is the targeted mean block interval in ms.
	TargetInterval int64

	// AverageMiningPower and StdevOfMiningPower parameterize the normal
	// distribution per-node hash rates are drawn from, truncated at 1.
	AverageMiningPower int64
	StdevOfMiningPower int64

	// EndBlockHeight stops the run once any node's tip reaches it.
	EndBlockHeight int

	// BlockSize and CompactBlockSize are the transfer sizes in bytes.
	BlockSize        int64
	CompactBlockSize int64

	// CBRUsageRate is the share of nodes supporting compact block relay;
	// ChurnNodeRate the share of nodes modeled as intermittently online.
	CBRUsageRate  float64
	ChurnNodeRate float64

	// CBRFailureRateForControlNode and CBRFailureRateForChurnNode are the
	// per-transfer probabilities that compact block relay fails.
	CBRFailureRateForControlNode float64
	CBRFailureRateForChurnNode   float64

	// DifficultyInterval is the number of blocks between difficulty
	// adjustments; zero disables adjustment.
	DifficultyInterval int

	// ObserverWindow is the number of blocks the propagation observer tracks
	// before flushing the oldest record.
	ObserverWindow int

	// Algorithm and Table select the consensus and topology strategies.
	Algorithm string
	Table     string

	// OutputDirectory receives the latency_<timestamp>.txt result file.
	OutputDirectory string

	// Output overrides the result file with an arbitrary writer when set.
	Output io.Writer

	// NetworkOptions override the built-in geography tables.
	NetworkOptions []options.Option[network.Network]
}

// NewOptions applies the given options on top of the bitcoin-2021 defaults.
func NewOptions(opts ...options.Option[Options]) *Options {
	return options.Apply(&Options{
		NumberOfNodes:                9853,
		Seed:                         10,
		TargetInterval:               1000 * 60 * 10,
		AverageMiningPower:           190539325,
		StdevOfMiningPower:           11380327,
		EndBlockHeight:               6479,
		BlockSize:                    1326097,
		CompactBlockSize:             13 * 1000,
		CBRUsageRate:                 0.89,
		ChurnNodeRate:                0.975,
		CBRFailureRateForControlNode: 0.13,
		CBRFailureRateForChurnNode:   0.27,
		DifficultyInterval:           2016,
		ObserverWindow:               observer.DefaultWindow,
		Algorithm:                    AlgorithmProofOfWork,
		Table:                        TableUniform,
		OutputDirectory:              "output",
	}, opts)
}

// WithNumberOfNodes sets the population size.
func WithNumberOfNodes(n int) options.Option[Options] {
	return func(o *Options) {
		o.NumberOfNodes = n
	}
}

// WithSeed sets the PRNG seed.
func WithSeed(seed int64) options.Option[Options] {
	return func(o *Options) {
		o.Seed = seed
	}
}

// WithTargetInterval sets the targeted mean block interval in ms.
func WithTargetInterval(interval int64) options.Option[Options] {
	return func(o *Options) {
		o.TargetInterval = interval
	}
}

// WithMiningPowerDistribution sets the mean and standard deviation of the
// per-node hash rate distribution.
func WithMiningPowerDistribution(average int64, stdev int64) options.Option[Options] {
	return func(o *Options) {
		o.AverageMiningPower = average
		o.StdevOfMiningPower = stdev
	}
}

// WithEndBlockHeight sets the chain height that terminates the run.
func WithEndBlockHeight(height int) options.Option[Options] {
	return func(o *Options) {
		o.EndBlockHeight = height
	}
}

// WithBlockSize sets the full block size in bytes.
func WithBlockSize(size int64) options.Option[Options] {
	return func(o *Options) {
		o.BlockSize = size
	}
}

// WithCompactBlockSize sets the compact block size in bytes.
func WithCompactBlockSize(size int64) options.Option[Options] {
	return func(o *Options) {
		o.CompactBlockSize = size
	}
}

// WithCBRUsageRate sets the share of nodes supporting compact block relay.
func WithCBRUsageRate(rate float64) options.Option[Options] {
	return func(o *Options) {
		o.CBRUsageRate = rate
	}
}

// WithChurnNodeRate sets the share of churn nodes.
func WithChurnNodeRate(rate float64) options.Option[Options] {
	return func(o *Options) {
		o.ChurnNodeRate = rate
	}
}

// WithCBRFailureRates sets the compact block relay failure probabilities for
// control and churn nodes.
func WithCBRFailureRates(control float64, churn float64) options.Option[Options] {
	return func(o *Options) {
		o.CBRFailureRateForControlNode = control
		o.CBRFailureRateForChurnNode = churn
	}
}

// WithDifficultyInterval sets the number of blocks between difficulty
// adjustments; zero disables adjustment.
func WithDifficultyInterval(interval int) options.Option[Options] {
	return func(o *Options) {
		o.DifficultyInterval = interval
	}
}

// WithObserverWindow sets the number of blocks the observer tracks at a time.
func WithObserverWindow(window int) options.Option[Options] {
	return func(o *Options) {
		o.ObserverWindow = window
	}
}

// WithAlgorithm selects the consensus strategy.
func WithAlgorithm(identifier string) options.Option[Options] {
	return func(o *Options) {
		o.Algorithm = identifier
	}
}

// WithTable selects the topology strategy.
func WithTable(identifier string) options.Option[Options] {
	return func(o *Options) {
		o.Table = identifier
	}
}

// WithOutputDirectory sets the directory the result file is written to.
func WithOutputDirectory(directory string) options.Option[Options] {
	return func(o *Options) {
		o.OutputDirectory = directory
	}
}

// WithOutput redirects the result stream, bypassing file creation.
func WithOutput(out io.Writer) options.Option[Options] {
	return func(o *Options) {
		o.Output = out
	}
}

// WithNetworkOptions overrides the built-in geography tables.
func WithNetworkOptions(netOpts ...options.Option[network.Network]) options.Option[Options] {
	return func(o *Options) {
		o.NetworkOptions = netOpts
	}
}
