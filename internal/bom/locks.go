package bom

import (
	"fmt"
	"sync"
)

// keyLock serializes read-modify-write cycles against the same remote stock
// record within this process. The platform offers no conditional update, so
// two overlapping deductions of one child would otherwise race between the
// read and the write. Staleness across process instances remains a
// documented limitation.
//
// The table keeps one mutex per distinct key ever locked and is never
// pruned. It is bounded by the number of stock records in the catalog, a
// few dozen bytes each, so eviction is not worth the bookkeeping.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyLock) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// productKey builds the lock key for a parent product's stock record.
func productKey(accountID uint, externalID int64) string {
	return fmt.Sprintf("%d:p:%d", accountID, externalID)
}

// variationKey builds the lock key for a variation's stock record.
func variationKey(accountID uint, parentExternalID, variationExternalID int64) string {
	return fmt.Sprintf("%d:v:%d:%d", accountID, parentExternalID, variationExternalID)
}
