package deck

// HandleDial dispatches a rotary or push event for the dial at index i
// on the current page.
//
// Turns apply optimistically: the local value moves immediately (clamped
// to the dial's bounds) and the matching remote command is issued in the
// background. The authoritative state_changed notification later
// confirms or corrects the local value.
func (c *Controller) HandleDial(i int, kind DialEventKind, delta float64) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if eff, woke := c.wakeLocked(); woke {
		c.mu.Unlock()
		c.apply(eff)
		return nil
	}

	d, page, err := c.layout.dial(i)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	var eff fx
	switch kind {
	case DialTurn:
		eff, err = c.turnLocked(d, i, page, delta)
	case DialPush:
		eff, err = c.pushLocked(d)
	}
	if err != nil {
		c.mu.Unlock()
		return err
	}

	c.armLocked()
	c.mu.Unlock()
	c.apply(eff)
	return nil
}

// turnLocked applies a signed detent delta to the dial's value and
// builds the outbound set-value command.
func (c *Controller) turnLocked(d *Dial, i int, page *Page, delta float64) (fx, error) {
	if d.Turn == nil {
		return fx{}, nil
	}
	if d.EntityID == "" {
		return fx{}, ErrUnboundEntity
	}
	c.hydrateLocked(d)

	value := d.Turn.Properties.Apply(delta)
	return c.setValueFx(d, i, page, value), nil
}

// setValueFx builds the effects for a dial value write: a re-render of
// the dial, the outbound service call carrying the value under the
// configured attribute, and the telemetry hook.
func (c *Controller) setValueFx(d *Dial, i int, page *Page, value float64) fx {
	attr := d.Turn.Properties.ServiceAttribute
	if attr == "" {
		attr = "value"
	}
	data := copyData(d.Turn.Data)
	data[attr] = value

	return fx{
		page:  page,
		dirty: Dirty{Dials: []int{i}},
		calls: []serviceCall{{
			service:  d.Turn.Service,
			data:     data,
			entityID: d.EntityID,
		}},
		adjusts: []dialAdjust{{entityID: d.EntityID, value: value}},
	}
}

// pushLocked dispatches a dial press.
func (c *Controller) pushLocked(d *Dial) (fx, error) {
	if d.Push == nil {
		return fx{}, nil
	}
	if d.EntityID == "" && d.Push.Service == "" {
		return fx{}, nil
	}

	service := d.Push.Service
	if service == "" {
		service = "homeassistant.toggle"
	}
	return fx{calls: []serviceCall{{
		service:  service,
		data:     copyData(d.Push.Data),
		entityID: d.EntityID,
	}}}, nil
}
