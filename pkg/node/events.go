package node

import (
	"github.com/iotaledger/hive.go/runtime/event"

	"github.com/iotaledger/blockprop/pkg/model"
)

// Events exposes what happens inside the node population to the rest of the
// simulation. All events fire synchronously at the virtual time of the task
// that caused them.
type Events struct {
	// BlockMinted is triggered when a node produces a new block.
	BlockMinted *event.Event2[*Node, model.Block]

	// BlockArrived is triggered whenever a block is seen by a node for the
	// first time, including by its own producer at mint time.
	BlockArrived *event.Event2[*Node, model.Block]

	// TipUpdated is triggered when a node switches its chain tip.
	TipUpdated *event.Event2[*Node, model.Block]

	// Error is triggered on fatal conditions inside task execution, which
	// cannot return errors through the scheduler.
	Error *event.Event1[error]
}

// NewEvents creates a new Events instance.
func NewEvents() *Events {
	return &Events{
		BlockMinted:  event.New2[*Node, model.Block](),
		BlockArrived: event.New2[*Node, model.Block](),
		TipUpdated:   event.New2[*Node, model.Block](),
		Error:        event.New1[error](),
	}
}
