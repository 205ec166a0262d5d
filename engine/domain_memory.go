package engine

import (
	"sync"
	"time"
)

// DomainMemory remembers which engine last got past a domain's defenses.
// Entries carry a TTL because defenses change; expired entries are pruned
// lazily on access, so no background goroutine is needed.
type DomainMemory struct {
	mu      sync.RWMutex
	entries map[string]domainEntry
	ttl     time.Duration
}

type domainEntry struct {
	engineName string
	expiresAt  time.Time
}

// NewDomainMemory creates a DomainMemory with the given entry TTL.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	return &DomainMemory{
		entries: make(map[string]domainEntry),
		ttl:     ttl,
	}
}

// Get returns the remembered engine for a domain, or "" if unknown/expired.
func (m *DomainMemory) Get(domain string) string {
	m.mu.RLock()
	e, ok := m.entries[domain]
	m.mu.RUnlock()
	if !ok {
		return ""
	}
	if time.Now().After(e.expiresAt) {
		m.Forget(domain)
		return ""
	}
	return e.engineName
}

// Remember records the engine that succeeded for a domain.
func (m *DomainMemory) Remember(domain, engineName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[domain] = domainEntry{
		engineName: engineName,
		expiresAt:  time.Now().Add(m.ttl),
	}
	// Opportunistic prune keeps the map bounded without a ticker.
	if len(m.entries) > 256 {
		now := time.Now()
		for d, e := range m.entries {
			if now.After(e.expiresAt) {
				delete(m.entries, d)
			}
		}
	}
}

// Len reports how many domains currently have a remembered engine,
// expired entries included until their lazy prune.
func (m *DomainMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Forget drops the memory for a domain (after the remembered engine fails).
func (m *DomainMemory) Forget(domain string) {
	m.mu.Lock()
	delete(m.entries, domain)
	m.mu.Unlock()
}
