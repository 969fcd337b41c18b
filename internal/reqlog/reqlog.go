// Package reqlog implements the thread-safe, insertion-ordered request log
// that records per-module load metadata captured by the instrumented loader
// shim.
package reqlog

import "sync"

// ModuleData is a single entry in the request log: the full URL the loader
// shim observed, the module id it resolved to, and the page path that
// triggered the load.
type ModuleData struct {
	URL      string `json:"url"`
	ID       string `json:"id"`
	Referrer string `json:"referrer"`
}

// Log is a shared, mutex-guarded, ordered sequence of ModuleData. Entries
// are appended only if an equal (url, id, referrer) tuple is not already
// present; insertion order is preserved.
type Log struct {
	mu      sync.Mutex
	entries []ModuleData
}

// New returns an empty request log.
func New() *Log {
	return &Log{}
}

// Append adds d to the log unless an identical entry is already present.
// Reports whether the entry was added.
func (l *Log) Append(d ModuleData) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, existing := range l.entries {
		if existing == d {
			return false
		}
	}
	l.entries = append(l.entries, d)
	return true
}

// Snapshot returns a copy of the log's current contents, safe to read
// without holding any lock.
func (l *Log) Snapshot() []ModuleData {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ModuleData, len(l.entries))
	copy(out, l.entries)
	return out
}

// Replace swaps the entire contents of the log, used when rehydrating from
// a seed file at startup.
func (l *Log) Replace(entries []ModuleData) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append([]ModuleData(nil), entries...)
}
