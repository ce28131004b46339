package metadata

import "context"

// raceResult is the outcome of one probe path, tagged with the index of the
// host that produced it.
type raceResult struct {
	idx int
	val *Value
	err error
}

// raceGet probes all hosts concurrently for the same logical resource and
// resolves to the first success. A path failure is only tentative: the race
// keeps waiting for the remaining paths, so a primary that fails fast never
// masks a secondary that succeeds a moment later. Only when every path has
// failed does the race surface an error, and then always the first host's,
// so the failure identity does not depend on completion order.
//
// The results channel is sized to the number of paths, so a losing goroutine
// always completes its single send and exits; nothing is cancelled and
// nothing leaks. An in-flight loser past the race's resolution finishes in
// the background and its buffered result is simply never read.
func (c *Client) raceGet(ctx context.Context, hosts []string, resource string, o getOptions, retries int) (*Value, error) {
	results := make(chan raceResult, len(hosts))
	for i, host := range hosts {
		go func(idx int, base string) {
			val, err := c.fetch(ctx, base, resource, o, retries)
			results <- raceResult{idx: idx, val: val, err: err}
		}(i, baseURL(host))
	}

	errs := make([]error, len(hosts))
	for range hosts {
		r := <-results
		if r.err == nil {
			return r.val, nil
		}
		errs[r.idx] = r.err
	}
	return nil, errs[0]
}
