package routing

import (
	"math/rand"

	"github.com/iotaledger/hive.go/ierrors"

	"github.com/iotaledger/blockprop/pkg/node"
)

var ErrPopulationTooSmall = ierrors.New("population does not satisfy the sampled outbound degree")

// UniformTable picks a node's outbound neighbors uniformly at random from the
// population. The outbound degree is sampled from the network's degree
// distribution when the table is created.
type UniformTable struct {
	self      *node.Node
	rand      *rand.Rand
	degree    int
	neighbors []*node.Node
}

// NewUniformTable creates the table for the given node with the given
// outbound degree.
func NewUniformTable(self *node.Node, rng *rand.Rand, degree int) *UniformTable {
	return &UniformTable{
		self:   self,
		rand:   rng,
		degree: degree,
	}
}

// Init fills the table from the population. The degree is capped at the
// number of other nodes.
func (t *UniformTable) Init(population []*node.Node) error {
	if len(population) == 0 {
		return ierrors.Wrapf(ErrPopulationTooSmall, "empty population")
	}

	degree := t.degree
	if degree > len(population)-1 {
		degree = len(population) - 1
	}

	for _, index := range t.rand.Perm(len(population)) {
		if len(t.neighbors) == degree {
			break
		}

		t.AddNeighbor(population[index])
	}

	return nil
}

// Neighbors returns the outbound neighbors in insertion order.
func (t *UniformTable) Neighbors() []*node.Node {
	return t.neighbors
}

// AddNeighbor adds an outbound neighbor, rejecting self-links and duplicates.
func (t *UniformTable) AddNeighbor(neighbor *node.Node) bool {
	if neighbor == t.self {
		return false
	}

	for _, existing := range t.neighbors {
		if existing == neighbor {
			return false
		}
	}

	t.neighbors = append(t.neighbors, neighbor)

	return true
}

// RemoveNeighbor drops an outbound neighbor.
func (t *UniformTable) RemoveNeighbor(neighbor *node.Node) bool {
	for i, existing := range t.neighbors {
		if existing == neighbor {
			t.neighbors = append(t.neighbors[:i], t.neighbors[i+1:]...)

			return true
		}
	}

	return false
}
