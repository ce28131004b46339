package metadata

import (
	"bytes"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/guregu/null.v3"
)

// dmiProductNamePath carries the platform vendor string on Linux VMs; on GCE
// it reads "Google" or "Google Compute Engine".
const dmiProductNamePath = "/sys/class/dmi/id/product_name"

// gceMACPrefix is the OUI-style prefix of virtual NIC hardware addresses on
// GCE, used as a fallback signal where DMI is not readable.
var gceMACPrefix = []byte{0x42, 0x01}

// SetResidency forces the cached residency verdict. Pass an invalid
// null.Bool to drop the forced value and recompute on next use.
func (c *Client) SetResidency(v null.Bool) {
	c.resMu.Lock()
	c.residency = v
	c.resMu.Unlock()
}

// Resident reports whether the process runs on Google infrastructure. The
// answer is computed once and cached until SetResidency changes it.
func (c *Client) Resident() bool {
	c.resMu.Lock()
	defer c.resMu.Unlock()
	if !c.residency.Valid {
		c.residency = null.BoolFrom(c.detectResidency())
	}
	return c.residency.Bool
}

// SetRequestTimeout pins the per-request bound, overriding the
// residency-derived policy. A zero duration disables the bound entirely.
func (c *Client) SetRequestTimeout(d time.Duration) {
	c.timeout = &d
}

// RequestTimeout returns the per-request bound: an explicit override if one
// was set, otherwise none at all on Google infrastructure, where the
// link-local server may legitimately be slow to answer wait_for_change
// requests, and a short fixed bound elsewhere so speculative probes cannot
// hang.
func (c *Client) RequestTimeout() time.Duration {
	if c.timeout != nil {
		return *c.timeout
	}
	if c.Resident() {
		return 0
	}
	return defaultTimeout
}

func (c *Client) detectResidency() bool {
	if c.config.serverless() {
		return true
	}
	if product, err := afero.ReadFile(c.fs, dmiProductNamePath); err == nil &&
		strings.Contains(string(product), "Google") {
		return true
	}
	ifaces, err := c.netInterfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if len(iface.HardwareAddr) >= 2 && bytes.HasPrefix(iface.HardwareAddr, gceMACPrefix) {
			return true
		}
	}
	return false
}
