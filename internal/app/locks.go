package service

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// stripedLock serializes work per zone with a fixed set of mutexes. Zones
// that hash to the same stripe also wait on each other.
type stripedLock struct {
	stripes []sync.Mutex
}

func newStripedLock(n int) *stripedLock {
	if n <= 0 {
		n = 1
	}
	return &stripedLock{stripes: make([]sync.Mutex, n)}
}

// lock acquires the stripe of zoneID and returns its release func.
func (l *stripedLock) lock(zoneID string) func() {
	m := &l.stripes[xxhash.Sum64String(zoneID)%uint64(len(l.stripes))]
	m.Lock()
	return m.Unlock
}
