package deck

// HandleTouch dispatches a touch-strip gesture.
//
// Drags past the horizontal threshold switch pages: rightward goes to
// the next home page, leftward to the previous. Taps map to the dial
// whose strip zone contains the X coordinate — the strip divides evenly
// across the dials of the current page — and, when that dial allows
// touchscreen events, drive its value to the minimum (short tap) or
// maximum (held past the long-press threshold).
func (c *Controller) HandleTouch(kind TouchEventKind, ev TouchEvent) error {
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

	page := c.layout.CurrentPage()

	var eff fx
	var err error
	switch kind {
	case TouchDrag:
		eff = c.dragLocked(ev)
	case TouchTap:
		eff, err = c.tapLocked(ev, page)
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

// dragLocked resolves a swipe. Drags of at least the threshold
// magnitude navigate; anything shorter is ignored.
func (c *Controller) dragLocked(ev TouchEvent) fx {
	dx := ev.XOut - ev.X
	switch {
	case dx >= c.dragThreshold:
		return fx{page: c.layout.NextPage(), dirty: Dirty{Full: true}, navigated: true}
	case dx <= -c.dragThreshold:
		return fx{page: c.layout.PreviousPage(), dirty: Dirty{Full: true}, navigated: true}
	default:
		return fx{}
	}
}

// tapLocked resolves a tap to a dial zone and drives the dial's value
// to its minimum (short tap) or maximum (long press).
func (c *Controller) tapLocked(ev TouchEvent, page *Page) (fx, error) {
	if len(page.Dials) == 0 {
		return fx{}, nil
	}

	zone := ev.X / (c.touchWidth / len(page.Dials))
	if zone < 0 || zone >= len(page.Dials) {
		c.logger.Debug("touch outside dial zones", "x", ev.X)
		return fx{}, nil
	}

	d := page.Dials[zone]
	if !d.AllowTouchscreenEvents || d.Turn == nil {
		return fx{}, nil
	}
	if d.EntityID == "" {
		return fx{}, ErrUnboundEntity
	}
	c.hydrateLocked(d)

	value := d.Turn.Properties.Min
	if ev.Held >= c.longPress {
		value = d.Turn.Properties.Max
	}
	d.Turn.Properties.SetState(value)
	return c.setValueFx(d, zone, page, value), nil
}
