package client

import (
	"context"

	"github.com/tsarna/rosbridge/pkg/rosbridge/protocol"
)

// Subscribe registers cb for topic and, the first time any callback is
// registered for that topic (or when msgType/compression change from
// what was last sent), sends a subscribe message. Subsequent
// registrations for an already-subscribed topic only update the local
// callback set (§4.4). If the connection is not currently Active, the
// subscription is still recorded so it can be replayed on connect.
func (c *Client) Subscribe(topic, msgType, compression string, cb Callback) error {
	c.mu.Lock()
	s, existed := c.subs[topic]
	needsWire := false
	if !existed {
		s = newSubscription(topic, msgType, compression)
		c.subs[topic] = s
		c.subOrder = append(c.subOrder, topic)
		needsWire = true
	} else if s.msgType != msgType || s.compression != compression {
		s.msgType = msgType
		s.compression = compression
		needsWire = true
	}
	s.add(cb)
	c.mu.Unlock()

	if c.monitor != nil {
		c.monitor.OnSubscribe(context.Background(), c, topic)
	}

	if !needsWire {
		return nil
	}

	env, err := c.resolver.Build(func(b protocol.Builder) protocol.Envelope {
		return b.Subscribe(topic, msgType, compression)
	})
	if err != nil {
		return err
	}
	return c.send(env)
}

// Unsubscribe removes cb from topic's callback set. When the set
// becomes empty, an unsubscribe message is sent and the local
// bookkeeping for topic is dropped, so it will not be replayed on the
// next connect.
func (c *Client) Unsubscribe(topic string, cb Callback) error {
	c.mu.Lock()
	s, ok := c.subs[topic]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	key := callbackKey(cb)
	delete(s.callbacks, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	empty := s.empty()
	if empty {
		delete(c.subs, topic)
		c.subOrder = removeString(c.subOrder, topic)
	}
	c.mu.Unlock()

	if c.monitor != nil {
		c.monitor.OnUnsubscribe(context.Background(), c, topic)
	}

	if !empty {
		return nil
	}

	env, err := c.resolver.Build(func(b protocol.Builder) protocol.Envelope {
		return b.Unsubscribe(topic)
	})
	if err != nil {
		return err
	}
	return c.send(env)
}

// Advertise declares topic as one this client will publish on, sending
// an advertise message and recording it for reconnect replay.
func (c *Client) Advertise(topic, msgType string) error {
	c.mu.Lock()
	if _, ok := c.adverts[topic]; !ok {
		c.advertOrder = append(c.advertOrder, topic)
	}
	c.adverts[topic] = &advertisement{topic: topic, msgType: msgType}
	c.mu.Unlock()

	env, err := c.resolver.Build(func(b protocol.Builder) protocol.Envelope {
		return b.Advertise(topic, msgType)
	})
	if err != nil {
		return err
	}
	return c.send(env)
}

// Publish sends msg on topic. Publish does not require a prior
// Advertise call; rosbridge servers accept publishes on topics that
// were never explicitly advertised by this client.
func (c *Client) Publish(topic string, msg any) error {
	env, err := c.resolver.Build(func(b protocol.Builder) protocol.Envelope {
		return b.Publish(topic, msg)
	})
	if err != nil {
		return err
	}
	return c.send(env)
}

func removeString(ss []string, target string) []string {
	for i, s := range ss {
		if s == target {
			return append(ss[:i], ss[i+1:]...)
		}
	}
	return ss
}
