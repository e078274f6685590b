package client

import "reflect"

// subscription is the Subscription entry of §3: keyed by topic outside
// this type, holding the message type, compression hint, and a
// deduplicated, insertion-ordered set of callbacks.
type subscription struct {
	topic       string
	msgType     string
	compression string
	order       []uintptr
	callbacks   map[uintptr]Callback
}

func newSubscription(topic, msgType, compression string) *subscription {
	return &subscription{
		topic:       topic,
		msgType:     msgType,
		compression: compression,
		callbacks:   make(map[uintptr]Callback),
	}
}

func callbackKey(cb Callback) uintptr {
	return reflect.ValueOf(cb).Pointer()
}

// add registers cb, returning false if it was already present (the set
// is idempotent under identity, per §4.4).
func (s *subscription) add(cb Callback) bool {
	key := callbackKey(cb)
	if _, exists := s.callbacks[key]; exists {
		return false
	}
	s.callbacks[key] = cb
	s.order = append(s.order, key)
	return true
}

func (s *subscription) empty() bool {
	return len(s.callbacks) == 0
}

// snapshot returns the callbacks in registration order. It copies the
// slice so concurrent mutation of the subscription during dispatch
// cannot affect an in-progress delivery (§5, "enumeration during
// dispatch snapshots the set").
func (s *subscription) snapshot() []Callback {
	out := make([]Callback, 0, len(s.order))
	for _, key := range s.order {
		if cb, ok := s.callbacks[key]; ok {
			out = append(out, cb)
		}
	}
	return out
}

// advertisement is the Advertised topic entry of §3.
type advertisement struct {
	topic   string
	msgType string
}
