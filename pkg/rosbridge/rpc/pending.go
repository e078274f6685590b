// Package rpc implements the three independent correlation tables of
// §3/§9: pending service (and CLI) calls by id, pending actions by id
// and by session id, and pending action cancels by (action, session)
// key. They are kept as three separate maps rather than one graph so
// destruction of one kind of entry never touches another.
package rpc

import "time"

// PendingCall is a call awaiting a response keyed by correlation id.
// The same shape serves both callService (§4.4) and the CLI execution
// surface (§ Supplemented features in SPEC_FULL.md); Kind distinguishes
// them only for logging.
type PendingCall struct {
	ID      string
	Kind    string // "service" or "cli"
	Name    string // service name or command
	Resolve func(values any)
	Reject  func(err error)
	Timer   *time.Timer
}

// Calls is the pending-service/CLI-call table, keyed by id.
type Calls struct {
	byID map[string]*PendingCall
}

// NewCalls returns an empty Calls table.
func NewCalls() *Calls {
	return &Calls{byID: make(map[string]*PendingCall)}
}

// Put stores p, overwriting any existing entry with the same id (id
// collisions overwrite, per §4.4).
func (c *Calls) Put(p *PendingCall) {
	c.byID[p.ID] = p
}

// Get returns the entry for id without removing it.
func (c *Calls) Get(id string) (*PendingCall, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Take removes and returns the entry for id, if any.
func (c *Calls) Take(id string) (*PendingCall, bool) {
	p, ok := c.byID[id]
	if ok {
		delete(c.byID, id)
	}
	return p, ok
}

// Delete removes the entry for id, if any, without returning it.
func (c *Calls) Delete(id string) {
	delete(c.byID, id)
}

// Len reports the number of pending calls.
func (c *Calls) Len() int {
	return len(c.byID)
}

// PendingAction is a goal awaiting a terminal event, keyed by
// correlation id with an auxiliary session-id index for reverse lookup.
type PendingAction struct {
	ID                string
	SessionID         string
	Action            string
	ActionType        string
	ResolveCompletion func(result any)
	RejectCompletion  func(err error)
	Timer             *time.Timer

	OnRequest  func(envelope map[string]any)
	OnFeedback func(feedback any)
	OnResult   func(result any)
}

// Actions is the pending-action table.
type Actions struct {
	byID      map[string]*PendingAction
	bySession map[string]string // session id -> action id
}

// NewActions returns an empty Actions table.
func NewActions() *Actions {
	return &Actions{
		byID:      make(map[string]*PendingAction),
		bySession: make(map[string]string),
	}
}

// Put stores p, indexing it by id and, if present, by session id.
func (a *Actions) Put(p *PendingAction) {
	a.byID[p.ID] = p
	if p.SessionID != "" {
		a.bySession[p.SessionID] = p.ID
	}
}

// Get returns the entry for id without removing it.
func (a *Actions) Get(id string) (*PendingAction, bool) {
	p, ok := a.byID[id]
	return p, ok
}

// Find resolves the pending action for an incoming event per §4.4's
// dispatch rule: by id, else by session id, else the sole pending
// action if exactly one is outstanding. It does not remove the entry.
func (a *Actions) Find(id, sessionID string) (*PendingAction, bool) {
	if id != "" {
		if p, ok := a.byID[id]; ok {
			return p, true
		}
	}
	if sessionID != "" {
		if actionID, ok := a.bySession[sessionID]; ok {
			if p, ok := a.byID[actionID]; ok {
				return p, true
			}
		}
	}
	if len(a.byID) == 1 {
		for _, p := range a.byID {
			return p, true
		}
	}
	return nil, false
}

// Remove deletes the entry for id from both the id and session indexes.
func (a *Actions) Remove(id string) {
	p, ok := a.byID[id]
	if !ok {
		return
	}
	delete(a.byID, id)
	if p.SessionID != "" {
		if a.bySession[p.SessionID] == id {
			delete(a.bySession, p.SessionID)
		}
	}
}

// Len reports the number of pending actions.
func (a *Actions) Len() int {
	return len(a.byID)
}

// DrainAll removes and returns every pending action. Used on disconnect
// (§5): all pending action completions are rejected and the table is
// cleared.
func (a *Actions) DrainAll() []*PendingAction {
	out := make([]*PendingAction, 0, len(a.byID))
	for _, p := range a.byID {
		out = append(out, p)
	}
	a.byID = make(map[string]*PendingAction)
	a.bySession = make(map[string]string)
	return out
}

// PendingCancel is a cancelActionGoal awaiting cancel_action_result,
// keyed by CancelKey(action, sessionID).
type PendingCancel struct {
	Key     string
	Resolve func(envelope any)
	Reject  func(err error)
	Timer   *time.Timer
}

// Cancels is the pending-cancel table.
type Cancels struct {
	byKey map[string]*PendingCancel
}

// NewCancels returns an empty Cancels table.
func NewCancels() *Cancels {
	return &Cancels{byKey: make(map[string]*PendingCancel)}
}

// CancelKey builds the "<action>::<sessionId or 'default'>" key of §3.
func CancelKey(action, sessionID string) string {
	if sessionID == "" {
		sessionID = "default"
	}
	return action + "::" + sessionID
}

func (c *Cancels) Put(p *PendingCancel) {
	c.byKey[p.Key] = p
}

func (c *Cancels) Take(key string) (*PendingCancel, bool) {
	p, ok := c.byKey[key]
	if ok {
		delete(c.byKey, key)
	}
	return p, ok
}

func (c *Cancels) Len() int {
	return len(c.byKey)
}

// DrainAll removes and returns every pending cancel. Used on disconnect,
// alongside Actions.DrainAll.
func (c *Cancels) DrainAll() []*PendingCancel {
	out := make([]*PendingCancel, 0, len(c.byKey))
	for _, p := range c.byKey {
		out = append(out, p)
	}
	c.byKey = make(map[string]*PendingCancel)
	return out
}
