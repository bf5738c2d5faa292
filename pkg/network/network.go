package network

import (
	"math"
	"math/rand"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/runtime/options"
)

// processingDelay is the fixed per-message processing term added on top of
// every sampled link latency, in milliseconds.
const processingDelay = 10

var (
	ErrRegionTableMismatch = ierrors.New("region table dimensions do not match")
	ErrEmptyDistribution   = ierrors.New("distribution table must not be empty")
)

// Network models the static geography of the simulated peer-to-peer overlay:
// region-to-region latency, per-region bandwidth and the distributions that
// node attributes are sampled from. All sampling consumes the single seeded
// PRNG of the simulation run, so a fixed seed reproduces every draw.
type Network struct {
	rand *rand.Rand

	latency            [][]int64 // mean latency per region pair (ms)
	uploadBandwidth    []int64   // bits per ms, per region
	downloadBandwidth  []int64   // bits per ms, per region
	regionDistribution []float64 // cumulative, per region
	degreeDistribution []float64 // cumulative, degree = index + 1

	cbrFailureSizeControl []float64 // cumulative fraction of the block size
	cbrFailureSizeChurn   []float64
}

// New creates a Network backed by the built-in bitcoin-2021 tables unless
// overridden by options.
func New(rng *rand.Rand, opts ...options.Option[Network]) (*Network, error) {
	n := options.Apply(&Network{
		rand:                  rng,
		latency:               latencyBitcoin2021,
		uploadBandwidth:       uploadBandwidthBitcoin2021,
		downloadBandwidth:     downloadBandwidthBitcoin2021,
		regionDistribution:    regionDistributionBitcoin2021,
		degreeDistribution:    degreeDistributionBitcoin2021,
		cbrFailureSizeControl: cbrFailureSizeDistributionControl,
		cbrFailureSizeChurn:   cbrFailureSizeDistributionChurn,
	}, opts)

	regions := len(n.latency)
	if len(n.uploadBandwidth) != regions || len(n.downloadBandwidth) != regions || len(n.regionDistribution) != regions {
		return nil, ierrors.Wrapf(ErrRegionTableMismatch, "%d regions in latency table", regions)
	}
	for _, row := range n.latency {
		if len(row) != regions {
			return nil, ierrors.Wrapf(ErrRegionTableMismatch, "latency row has %d columns, want %d", len(row), regions)
		}
	}
	if len(n.degreeDistribution) == 0 || len(n.cbrFailureSizeControl) == 0 || len(n.cbrFailureSizeChurn) == 0 {
		return nil, ErrEmptyDistribution
	}

	return n, nil
}

// Regions returns the number of regions in the configured tables.
func (n *Network) Regions() int {
	return len(n.latency)
}

// MessageLatency samples the one-way delay of a single message between the two
// regions: a Pareto draw around the configured mean plus the fixed processing
// term.
func (n *Network) MessageLatency(from int, to int) int64 {
	mean := float64(n.latency[from][to])
	shape := 0.2 * mean
	scale := mean - 5
	if scale < 1 {
		scale = 1
	}

	latency := int64(math.Round(scale / math.Pow(n.rand.Float64(), 1/shape)))

	return latency + processingDelay
}

// DownloadTime returns the virtual time needed to transfer size bytes from a
// node in the sender region to a node in the receiver region: the serialization
// delay over the slower of the two access links plus one message latency.
func (n *Network) DownloadTime(sender int, receiver int, size int64) int64 {
	bandwidth := n.uploadBandwidth[sender]
	if n.downloadBandwidth[receiver] < bandwidth {
		bandwidth = n.downloadBandwidth[receiver]
	}

	return size*8/bandwidth + n.MessageLatency(sender, receiver)
}

// SampleRegion draws a region index from the region distribution.
func (n *Network) SampleRegion() int {
	return n.sampleCDF(n.regionDistribution)
}

// SampleDegree draws an outbound connection count from the degree distribution.
func (n *Network) SampleDegree() int {
	return n.sampleCDF(n.degreeDistribution) + 1
}

// CBRFailureBlockSize draws the number of bytes a node has to fetch after a
// failed compact block relay, as a fraction of the full block size. The
// distribution differs between churn and control nodes.
func (n *Network) CBRFailureBlockSize(churn bool, blockSize int64) int64 {
	distribution := n.cbrFailureSizeControl
	if churn {
		distribution = n.cbrFailureSizeChurn
	}

	u := n.rand.Float64()
	for i, cumulative := range distribution {
		if u < cumulative {
			return blockSize * int64(i+1) / int64(len(distribution))
		}
	}

	return blockSize
}

func (n *Network) sampleCDF(distribution []float64) int {
	u := n.rand.Float64()
	for i, cumulative := range distribution {
		if u < cumulative {
			return i
		}
	}

	return len(distribution) - 1
}

// WithLatencyTable overrides the mean latency matrix (ms, indexed by region pair).
func WithLatencyTable(latency [][]int64) options.Option[Network] {
	return func(n *Network) {
		n.latency = latency
	}
}

// WithBandwidthTables overrides the per-region upload and download bandwidth
// tables (bits per ms).
func WithBandwidthTables(upload []int64, download []int64) options.Option[Network] {
	return func(n *Network) {
		n.uploadBandwidth = upload
		n.downloadBandwidth = download
	}
}

// WithRegionDistribution overrides the cumulative region distribution nodes
// are assigned from.
func WithRegionDistribution(distribution []float64) options.Option[Network] {
	return func(n *Network) {
		n.regionDistribution = distribution
	}
}

// WithDegreeDistribution overrides the cumulative outbound-degree distribution.
func WithDegreeDistribution(distribution []float64) options.Option[Network] {
	return func(n *Network) {
		n.degreeDistribution = distribution
	}
}

// WithCBRFailureSizeDistributions overrides the cumulative fallback-size
// distributions used on compact block relay failure.
func WithCBRFailureSizeDistributions(control []float64, churn []float64) options.Option[Network] {
	return func(n *Network) {
		n.cbrFailureSizeControl = control
		n.cbrFailureSizeChurn = churn
	}
}
