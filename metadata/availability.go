package metadata

import "context"

// availCall is one memoized availability probe. done is closed once the
// verdict is known; awaiters that grabbed this call before a reset still
// observe its original verdict afterwards.
type availCall struct {
	done    chan struct{}
	verdict bool
}

// Available reports whether the metadata server is reachable. It never fails:
// every probe error is classified into a false verdict, so it is safe to call
// speculatively in any environment.
//
// The first caller starts exactly one underlying probe; concurrent and
// subsequent callers share its verdict until ResetAvailabilityCache. The
// probe itself is detached from the first caller's cancellation, but a caller
// whose context ends while the probe is still in flight gets false
// immediately rather than blocking.
func (c *Client) Available(ctx context.Context) bool {
	c.availMu.Lock()
	call := c.avail
	if call == nil {
		call = &availCall{done: make(chan struct{})}
		c.avail = call
		go c.probe(context.WithoutCancel(ctx), call)
	}
	c.availMu.Unlock()

	select {
	case <-call.done:
		return call.verdict
	case <-ctx.Done():
		return false
	}
}

// ResetAvailabilityCache clears the memoized verdict so the next Available
// call starts a fresh probe. Safe to call while a probe is in flight.
func (c *Client) ResetAvailabilityCache() {
	c.availMu.Lock()
	c.avail = nil
	c.availMu.Unlock()
}

// probe performs the availability check: one instance-metadata fetch, raced
// across both server addresses unless an explicit address override pins a
// single path. The retry budget comes from DETECT_GCP_RETRIES, not from the
// client's regular fetch budget.
func (c *Client) probe(ctx context.Context, call *availCall) {
	defer close(call.done)

	retries := int(c.config.Retries.Int64)
	o := getOptions{}

	var err error
	if host := c.pinnedHost(); host != "" {
		_, err = c.fetch(ctx, baseURL(host), "instance", o, retries)
	} else {
		_, err = c.raceGet(ctx, []string{primaryHost, secondaryHost}, "instance", o, retries)
	}
	if err == nil {
		call.verdict = true
		return
	}
	call.verdict = false
	c.classifyProbeFailure(err)
}

// pinnedHost returns the explicitly configured metadata address, or "" when
// none is set and the dual-path race should be used.
func (c *Client) pinnedHost() string {
	if c.host != "" {
		return c.host
	}
	if host, ok := c.config.addressOverride(); ok {
		return host
	}
	return ""
}

// classifyProbeFailure decides how loudly a failed probe is reported. The
// expected off-GCE failure shapes stay silent; anything unrecognized gets a
// warning so misconfiguration is observable without breaking the boolean
// contract.
func (c *Client) classifyProbeFailure(err error) {
	if c.config.debugEnabled() {
		c.logger.WithError(err).Debug("metadata server availability probe failed")
	}
	switch {
	case isTimeout(err):
		// A real metadata server answers in milliseconds.
	case statusCode(err) == 404:
	case isKnownAbsence(err):
	default:
		c.logger.WithError(err).Warn("unexpected error determining metadata server availability")
	}
}
