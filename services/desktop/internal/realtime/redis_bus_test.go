package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"orionos/pkg/domain"
)

type captured struct {
	mu     sync.Mutex
	events map[string][]domain.Event
}

func (c *captured) Publish(profileID string, ev domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.events == nil {
		c.events = map[string][]domain.Event{}
	}
	c.events[profileID] = append(c.events[profileID], ev)
}

func (c *captured) count(profileID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events[profileID])
}

func TestRedisBusFansOutToEveryNode(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var nodeA, nodeB captured
	busA, err := NewRedisBus(RedisBusConfig{Addr: mr.Addr(), Block: 50 * time.Millisecond}, &nodeA)
	require.NoError(t, err)
	defer busA.Close()
	busB, err := NewRedisBus(RedisBusConfig{Addr: mr.Addr(), Block: 50 * time.Millisecond}, &nodeB)
	require.NoError(t, err)
	defer busB.Close()
	require.NoError(t, busA.Start(ctx))
	require.NoError(t, busB.Start(ctx))

	busA.Publish("p1", domain.Event{Type: domain.EventConstellationSwitch, ConstellationID: "c2"})

	require.Eventually(t, func() bool { return nodeA.count("p1") == 1 && nodeB.count("p1") == 1 }, 2*time.Second, 10*time.Millisecond)
	// the publishing node skips its own stream entry
	require.Never(t, func() bool { return nodeA.count("p1") > 1 }, 200*time.Millisecond, 10*time.Millisecond)
	nodeB.mu.Lock()
	got := nodeB.events["p1"][0]
	nodeB.mu.Unlock()
	require.Equal(t, domain.EventConstellationSwitch, got.Type)
	require.Equal(t, "c2", got.ConstellationID)
}

func TestRedisBusSkipsHistory(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var early captured
	writer, err := NewRedisBus(RedisBusConfig{Addr: mr.Addr()}, &early)
	require.NoError(t, err)
	defer writer.Close()
	writer.Publish("p1", domain.Event{Type: domain.EventDesktopUpdated})

	var late captured
	reader, err := NewRedisBus(RedisBusConfig{Addr: mr.Addr(), Block: 50 * time.Millisecond}, &late)
	require.NoError(t, err)
	defer reader.Close()
	require.NoError(t, reader.Start(ctx))
	writer.Publish("p1", domain.Event{Type: domain.EventWindowUpdated})

	require.Eventually(t, func() bool { return late.count("p1") == 1 }, 2*time.Second, 10*time.Millisecond)
	late.mu.Lock()
	defer late.mu.Unlock()
	require.Equal(t, domain.EventWindowUpdated, late.events["p1"][0].Type)
}

func TestRedisBusFallsBackToLocalDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	var local captured
	bus, err := NewRedisBus(RedisBusConfig{Addr: mr.Addr()}, &local)
	require.NoError(t, err)
	defer bus.Close()
	mr.Close()

	bus.Publish("p1", domain.Event{Type: domain.EventWindowFocused})
	require.Equal(t, 1, local.count("p1"))
}

func TestRedisBusDeliversLocallyBeforeRelay(t *testing.T) {
	mr := miniredis.RunT(t)
	var local captured
	bus, err := NewRedisBus(RedisBusConfig{Addr: mr.Addr()}, &local)
	require.NoError(t, err)
	defer bus.Close()

	bus.Publish("p1", domain.Event{Type: domain.EventWindowUpdated})
	require.Equal(t, 1, local.count("p1"))

	entries, err := bus.client.XRange(context.Background(), bus.stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, bus.node, entries[0].Values["node"])
}
