package simulation

import (
	"fmt"
	"io"
	"math"
	"math/big"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/options"

	"github.com/iotaledger/blockprop/pkg/core/eventqueue"
	"github.com/iotaledger/blockprop/pkg/model"
	"github.com/iotaledger/blockprop/pkg/network"
	"github.com/iotaledger/blockprop/pkg/node"
	"github.com/iotaledger/blockprop/pkg/node/pow"
	"github.com/iotaledger/blockprop/pkg/node/routing"
	"github.com/iotaledger/blockprop/pkg/observer"
)

var (
	ErrInvalidConfiguration = ierrors.New("invalid configuration")
	ErrUnknownAlgorithm     = ierrors.New("unknown consensus algorithm")
	ErrUnknownTable         = ierrors.New("unknown routing table")
)

// Simulation owns one discrete-event run: the node population, the shared
// clock, network and PRNG, and the propagation observer. It is single-use.
type Simulation struct {
	log.Logger

	runID uuid.UUID
	opts  *Options

	rand      *rand.Rand
	scheduler *eventqueue.Scheduler
	network   *network.Network
	events    *node.Events
	consensus node.Consensus
	nodes     []*node.Node

	endReached bool
	runErr     error
}

// New validates the configuration and builds the population: every node gets
// a region, a hash rate, its protocol flags and its outbound neighbors, all
// drawn from the run's single PRNG.
func New(logger log.Logger, opts ...options.Option[Options]) (*Simulation, error) {
	o := NewOptions(opts...)
	if err := validate(o); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(o.Seed))

	net, err := network.New(rng, o.NetworkOptions...)
	if err != nil {
		return nil, ierrors.Wrap(err, "building network model")
	}

	s := &Simulation{
		Logger:    logger,
		runID:     uuid.New(),
		opts:      o,
		rand:      rng,
		scheduler: eventqueue.New(),
		network:   net,
		events:    node.NewEvents(),
	}

	env := &node.Environment{
		Scheduler: s.scheduler,
		Network:   net,
		Rand:      rng,
		Events:    s.events,
		Settings: &node.Settings{
			BlockSize:                    o.BlockSize,
			CompactBlockSize:             o.CompactBlockSize,
			CBRFailureRateForControlNode: o.CBRFailureRateForControlNode,
			CBRFailureRateForChurnNode:   o.CBRFailureRateForChurnNode,
		},
	}

	type attributes struct {
		region      int
		miningPower int64
		useCBR      bool
		isChurn     bool
	}

	attrs := make([]attributes, o.NumberOfNodes)
	totalMiningPower := new(big.Int)
	for i := range attrs {
		attrs[i] = attributes{
			region:      net.SampleRegion(),
			miningPower: sampleMiningPower(rng, o.AverageMiningPower, o.StdevOfMiningPower),
			useCBR:      rng.Float64() < o.CBRUsageRate,
			isChurn:     rng.Float64() < o.ChurnNodeRate,
		}
		totalMiningPower.Add(totalMiningPower, big.NewInt(attrs[i].miningPower))
	}

	switch o.Algorithm {
	case AlgorithmProofOfWork:
		s.consensus = pow.New(rng, totalMiningPower, func(nodeID int) int64 { return attrs[nodeID].miningPower },
			pow.WithTargetInterval(o.TargetInterval),
			pow.WithDifficultyInterval(o.DifficultyInterval),
		)
	default:
		return nil, ierrors.Wrapf(ErrUnknownAlgorithm, "%q", o.Algorithm)
	}

	s.nodes = make([]*node.Node, o.NumberOfNodes)
	for i := range s.nodes {
		s.nodes[i] = node.New(env, s.consensus, i, attrs[i].region, attrs[i].miningPower, attrs[i].useCBR, attrs[i].isChurn)
	}

	switch o.Table {
	case TableUniform:
		tables := make([]*routing.UniformTable, len(s.nodes))
		for i, n := range s.nodes {
			tables[i] = routing.NewUniformTable(n, rng, net.SampleDegree())
			n.SetRoutingTable(tables[i])
		}
		for _, table := range tables {
			if err := table.Init(s.nodes); err != nil {
				return nil, ierrors.Wrap(err, "building topology")
			}
		}
	default:
		return nil, ierrors.Wrapf(ErrUnknownTable, "%q", o.Table)
	}

	return s, nil
}

// RunID returns the unique identifier of this run, used in log output.
func (s *Simulation) RunID() uuid.UUID {
	return s.runID
}

// Nodes returns the simulated population.
func (s *Simulation) Nodes() []*node.Node {
	return s.nodes
}

// Events returns the population's event surface.
func (s *Simulation) Events() *node.Events {
	return s.events
}

// CurrentTime returns the current virtual time of the run in ms.
func (s *Simulation) CurrentTime() int64 {
	return s.scheduler.CurrentTime()
}

// Run seeds genesis at every node, pumps the event queue until the termination
// height is reached or the queue drains, and flushes the observer. The
// returned error is nil unless the run aborted or the result stream failed.
func (s *Simulation) Run() error {
	out, closeOutput, err := s.openOutput()
	if err != nil {
		return err
	}

	propagation := observer.New(s.Logger, out, s.opts.ObserverWindow)

	unhook := lo.Batch(
		s.events.BlockArrived.Hook(func(n *node.Node, block model.Block) {
			propagation.ArriveBlock(block, n.ID(), s.scheduler.CurrentTime())
		}).Unhook,
		s.events.BlockMinted.Hook(func(n *node.Node, block model.Block) {
			s.LogDebug("block minted", "nodeID", n.ID(), "blockID", block.ID(), "height", block.Height(), "time", block.MintTime())
		}).Unhook,
		s.events.TipUpdated.Hook(func(_ *node.Node, block model.Block) {
			if block.Height() >= s.opts.EndBlockHeight {
				s.endReached = true
			}
		}).Unhook,
		s.events.Error.Hook(func(err error) {
			if s.runErr == nil {
				s.runErr = err
			}
		}).Unhook,
	)
	defer unhook()

	s.LogInfo("simulation started",
		"runID", s.runID,
		"nodes", s.opts.NumberOfNodes,
		"seed", s.opts.Seed,
		"endBlockHeight", s.opts.EndBlockHeight,
	)

	genesis := s.consensus.GenesisBlock(s.nodes[0])
	for _, n := range s.nodes {
		n.SeedGenesis(genesis)
	}

	for !s.endReached && s.runErr == nil && s.scheduler.RunNext() {
	}

	flushErr := propagation.Flush()
	closeErr := closeOutput()

	s.LogInfo("simulation finished",
		"runID", s.runID,
		"virtualTime", s.scheduler.CurrentTime(),
		"pendingTasks", s.scheduler.Size(),
	)

	if s.runErr != nil {
		return s.runErr
	}
	if flushErr != nil {
		return flushErr
	}

	return closeErr
}

// openOutput resolves the result stream: the configured writer if any,
// otherwise a fresh latency_<timestamp>.txt in the output directory.
func (s *Simulation) openOutput() (out io.Writer, closeOutput func() error, err error) {
	if s.opts.Output != nil {
		return s.opts.Output, func() error { return nil }, nil
	}

	if err := os.MkdirAll(s.opts.OutputDirectory, 0o755); err != nil {
		return nil, nil, ierrors.Wrapf(err, "creating output directory %s", s.opts.OutputDirectory)
	}

	path := filepath.Join(s.opts.OutputDirectory, fmt.Sprintf("latency_%s.txt", time.Now().Format("2006-01-02T15:04:05")))

	file, err := os.Create(path)
	if err != nil {
		return nil, nil, ierrors.Wrapf(err, "creating output file %s", path)
	}

	s.LogInfo("writing propagation times", "path", path)

	return file, file.Close, nil
}

// sampleMiningPower draws a node's hash rate from the configured normal
// distribution, truncated at 1.
func sampleMiningPower(rng *rand.Rand, average int64, stdev int64) int64 {
	power := int64(math.Round(rng.NormFloat64()*float64(stdev) + float64(average)))
	if power < 1 {
		power = 1
	}

	return power
}

func validate(o *Options) error {
	switch {
	case o.NumberOfNodes < 1:
		return ierrors.Wrapf(ErrInvalidConfiguration, "number of nodes must be at least 1, got %d", o.NumberOfNodes)
	case o.TargetInterval < 1:
		return ierrors.Wrapf(ErrInvalidConfiguration, "target interval must be positive, got %d", o.TargetInterval)
	case o.AverageMiningPower < 1:
		return ierrors.Wrapf(ErrInvalidConfiguration, "average mining power must be at least 1, got %d", o.AverageMiningPower)
	case o.EndBlockHeight < 1:
		return ierrors.Wrapf(ErrInvalidConfiguration, "end block height must be at least 1, got %d", o.EndBlockHeight)
	case o.BlockSize < 1 || o.CompactBlockSize < 1:
		return ierrors.Wrapf(ErrInvalidConfiguration, "block sizes must be positive, got %d and %d", o.BlockSize, o.CompactBlockSize)
	case o.CBRUsageRate < 0 || o.CBRUsageRate > 1:
		return ierrors.Wrapf(ErrInvalidConfiguration, "CBR usage rate must lie in [0, 1], got %v", o.CBRUsageRate)
	case o.ChurnNodeRate < 0 || o.ChurnNodeRate > 1:
		return ierrors.Wrapf(ErrInvalidConfiguration, "churn node rate must lie in [0, 1], got %v", o.ChurnNodeRate)
	case o.CBRFailureRateForControlNode < 0 || o.CBRFailureRateForControlNode > 1:
		return ierrors.Wrapf(ErrInvalidConfiguration, "CBR failure rate must lie in [0, 1], got %v", o.CBRFailureRateForControlNode)
	case o.CBRFailureRateForChurnNode < 0 || o.CBRFailureRateForChurnNode > 1:
		return ierrors.Wrapf(ErrInvalidConfiguration, "CBR failure rate must lie in [0, 1], got %v", o.CBRFailureRateForChurnNode)
	default:
		return nil
	}
}
