package engine

// subscriberBuffer is the number of status updates a slow subscriber may
// fall behind before updates are dropped for it.
const subscriberBuffer = 16

// Subscribe returns a channel receiving every status change, starting with
// the current status. The cancel function unsubscribes and closes the
// channel; Close closes all channels.
func (c *Controller) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, subscriberBuffer)

	c.mu.Lock()
	ch <- c.status
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	if c.closed {
		close(ch)
	} else {
		c.subs[id] = ch
	}
	c.subMu.Unlock()
	c.mu.Unlock()

	cancel := func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// setStatusLocked moves to state with message and notifies subscribers.
func (c *Controller) setStatusLocked(state State, message string) {
	c.status.State = state
	c.status.Message = message
	c.status.ChangedAt = c.now()
	c.broadcastLocked()
}

// broadcastLocked delivers the current status without blocking.
func (c *Controller) broadcastLocked() {
	st := c.status

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- st:
		default:
		}
	}
}
