package homey

import (
	"sync"
	"time"
)

// DeviceCacheTTL bounds how stale the cached device list may get.
const DeviceCacheTTL = 30 * time.Second

// deviceCache holds the last device listing of one adapter instance.
type deviceCache struct {
	mu        sync.Mutex
	devices   []homeyDevice
	fetchedAt time.Time
	ttl       time.Duration
	now       func() time.Time
}

func newDeviceCache(ttl time.Duration) *deviceCache {
	return &deviceCache{ttl: ttl, now: time.Now}
}

// get returns the cached listing if it is younger than ttl.
func (c *deviceCache) get() ([]homeyDevice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.devices == nil || c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.devices, true
}

func (c *deviceCache) put(devices []homeyDevice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if devices == nil {
		devices = []homeyDevice{}
	}
	c.devices = devices
	c.fetchedAt = c.now()
}

func (c *deviceCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices = nil
}
