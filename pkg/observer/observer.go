package observer

import (
	"fmt"
	"io"
	"sort"

	"github.com/iotaledger/hive.go/ds/orderedmap"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/iotaledger/blockprop/pkg/model"
)

// DefaultWindow is the number of blocks tracked before the oldest record is
// flushed to the output.
const DefaultWindow = 10

// Observer records, per block, the virtual time between its minting and its
// first arrival at every node, and streams completed records to the output.
// Records are held in a FIFO window: once it is full, every newly observed
// block flushes the oldest record.
type Observer struct {
	logger log.Logger
	out    io.Writer
	window int

	tracked  []*record
	writeErr error
}

// record is the propagation bookkeeping of one observed block: the delay per
// node id, in arrival order, first arrival winning.
type record struct {
	block    model.Block
	arrivals *orderedmap.OrderedMap[int, int64]
}

// New creates an Observer writing flushed records to out.
func New(logger log.Logger, out io.Writer, window int) *Observer {
	if window <= 0 {
		window = DefaultWindow
	}
	if out == nil {
		out = io.Discard
	}

	return &Observer{
		logger: logger,
		out:    out,
		window: window,
	}
}

// ArriveBlock records that the block reached the node at the given virtual
// time. Repeat arrivals of a block at the same node are ignored.
func (o *Observer) ArriveBlock(block model.Block, nodeID int, now int64) {
	delay := now - block.MintTime()

	for _, tracked := range o.tracked {
		if tracked.block != block {
			continue
		}

		if _, seen := tracked.arrivals.Get(nodeID); !seen {
			tracked.arrivals.Set(nodeID, delay)
		}

		return
	}

	if len(o.tracked) >= o.window {
		o.flushRecord(o.tracked[0])
		o.tracked = o.tracked[1:]
	}

	arrivals := orderedmap.New[int, int64]()
	arrivals.Set(nodeID, delay)
	o.tracked = append(o.tracked, &record{block: block, arrivals: arrivals})
}

// Flush writes all remaining records to the output and reports the first
// write error encountered over the observer's lifetime.
func (o *Observer) Flush() error {
	for _, tracked := range o.tracked {
		o.flushRecord(tracked)
	}
	o.tracked = nil

	return o.writeErr
}

// flushRecord emits one line per node that saw the block, holding the
// propagation delay in ms. The producer's zero-delay line is suppressed.
func (o *Observer) flushRecord(tracked *record) {
	delays := make([]float64, 0, tracked.arrivals.Size())

	tracked.arrivals.ForEach(func(nodeID int, delay int64) bool {
		if delay == 0 {
			return true
		}

		delays = append(delays, float64(delay))

		if _, err := fmt.Fprintf(o.out, "%d\n", delay); err != nil && o.writeErr == nil {
			o.writeErr = ierrors.Wrapf(err, "writing propagation record of block %d", tracked.block.ID())
			o.logger.LogError("failed to write propagation record", "blockID", tracked.block.ID(), "err", err)
		}

		return true
	})

	if len(delays) == 0 {
		return
	}

	sort.Float64s(delays)
	o.logger.LogDebug("block propagation flushed",
		"blockID", tracked.block.ID(),
		"height", tracked.block.Height(),
		"nodes", len(delays),
		"mean", stat.Mean(delays, nil),
		"median", stat.Quantile(0.5, stat.Empirical, delays, nil),
		"max", floats.Max(delays),
	)
}
