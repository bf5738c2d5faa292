package routing

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/blockprop/pkg/core/eventqueue"
	"github.com/iotaledger/blockprop/pkg/network"
	"github.com/iotaledger/blockprop/pkg/node"
)

func newPopulation(t *testing.T, rng *rand.Rand, size int) []*node.Node {
	t.Helper()

	net, err := network.New(rng)
	require.NoError(t, err)

	env := &node.Environment{
		Scheduler: eventqueue.New(),
		Network:   net,
		Rand:      rng,
		Events:    node.NewEvents(),
		Settings:  &node.Settings{BlockSize: 1000, CompactBlockSize: 100},
	}

	population := make([]*node.Node, size)
	for i := range population {
		population[i] = node.New(env, nil, i, 0, 1, false, false)
	}

	return population
}

func TestUniformTable_Init(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	population := newPopulation(t, rng, 20)

	table := NewUniformTable(population[0], rng, 8)
	require.NoError(t, table.Init(population))

	neighbors := table.Neighbors()
	require.Len(t, neighbors, 8)

	seen := make(map[*node.Node]bool)
	for _, neighbor := range neighbors {
		require.NotEqual(t, population[0], neighbor)
		require.False(t, seen[neighbor])
		seen[neighbor] = true
	}
}

func TestUniformTable_DegreeCappedByPopulation(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	population := newPopulation(t, rng, 3)

	table := NewUniformTable(population[1], rng, 8)
	require.NoError(t, table.Init(population))
	require.Len(t, table.Neighbors(), 2)
}

func TestUniformTable_SingleNode(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	population := newPopulation(t, rng, 1)

	table := NewUniformTable(population[0], rng, 8)
	require.NoError(t, table.Init(population))
	require.Empty(t, table.Neighbors())
}

func TestUniformTable_AddRemove(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	population := newPopulation(t, rng, 3)

	table := NewUniformTable(population[0], rng, 0)

	require.False(t, table.AddNeighbor(population[0]))
	require.True(t, table.AddNeighbor(population[1]))
	require.False(t, table.AddNeighbor(population[1]))
	require.True(t, table.AddNeighbor(population[2]))

	require.True(t, table.RemoveNeighbor(population[1]))
	require.False(t, table.RemoveNeighbor(population[1]))
	require.Len(t, table.Neighbors(), 1)
}
