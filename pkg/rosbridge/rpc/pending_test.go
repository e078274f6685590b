package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallsOverwriteOnIDCollision(t *testing.T) {
	calls := NewCalls()
	calls.Put(&PendingCall{ID: "1", Name: "/a"})
	calls.Put(&PendingCall{ID: "1", Name: "/b"})

	p, ok := calls.Get("1")
	assert.True(t, ok)
	assert.Equal(t, "/b", p.Name)
	assert.Equal(t, 1, calls.Len())
}

func TestCallsTakeRemoves(t *testing.T) {
	calls := NewCalls()
	calls.Put(&PendingCall{ID: "1"})

	_, ok := calls.Take("1")
	assert.True(t, ok)

	_, ok = calls.Get("1")
	assert.False(t, ok)
}

func TestActionsFindByID(t *testing.T) {
	a := NewActions()
	a.Put(&PendingAction{ID: "g1", SessionID: "s1"})
	a.Put(&PendingAction{ID: "g2", SessionID: "s2"})

	p, ok := a.Find("g2", "")
	assert.True(t, ok)
	assert.Equal(t, "g2", p.ID)
}

func TestActionsFindBySessionWhenIDMissing(t *testing.T) {
	a := NewActions()
	a.Put(&PendingAction{ID: "g1", SessionID: "s1"})

	p, ok := a.Find("", "s1")
	assert.True(t, ok)
	assert.Equal(t, "g1", p.ID)
}

func TestActionsFindSoleWhenNoCorrelators(t *testing.T) {
	a := NewActions()
	a.Put(&PendingAction{ID: "only"})

	p, ok := a.Find("", "")
	assert.True(t, ok)
	assert.Equal(t, "only", p.ID)
}

func TestActionsFindAmbiguousWithTwoPendingDropsSilently(t *testing.T) {
	a := NewActions()
	a.Put(&PendingAction{ID: "g1"})
	a.Put(&PendingAction{ID: "g2"})

	_, ok := a.Find("", "")
	assert.False(t, ok)
}

func TestActionsRemoveClearsSessionIndex(t *testing.T) {
	a := NewActions()
	a.Put(&PendingAction{ID: "g1", SessionID: "s1"})

	a.Remove("g1")

	assert.Equal(t, 0, a.Len())
	_, ok := a.Find("", "s1")
	assert.False(t, ok)
}

func TestActionsDrainAllClearsTable(t *testing.T) {
	a := NewActions()
	a.Put(&PendingAction{ID: "g1", SessionID: "s1"})
	a.Put(&PendingAction{ID: "g2"})

	drained := a.DrainAll()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, a.Len())
}

func TestCancelKeyDefaultsSession(t *testing.T) {
	assert.Equal(t, "/arm/move::default", CancelKey("/arm/move", ""))
	assert.Equal(t, "/arm/move::s1", CancelKey("/arm/move", "s1"))
}
