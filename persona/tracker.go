package persona

import (
	"strings"
	"sync"
)

// Tracker enforces at most one in-flight completion per (persona, scope,
// user) key. It is transient state: nothing here survives a restart.
type Tracker struct {
	mu      sync.RWMutex
	public  map[string]struct{}
	private map[string]map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{
		public:  make(map[string]struct{}),
		private: make(map[string]map[string]struct{}),
	}
}

func trackerKey(name string) string { return strings.ToLower(name) }

// TryStart marks the key as generating. It fails without side effects when
// the key is already marked.
func (t *Tracker) TryStart(name string, private bool, uid string) bool {
	key := trackerKey(name)

	t.mu.Lock()
	defer t.mu.Unlock()

	if private {
		set := t.private[key]
		if _, busy := set[uid]; busy {
			return false
		}
		if set == nil {
			set = make(map[string]struct{})
			t.private[key] = set
		}
		set[uid] = struct{}{}
		return true
	}

	if _, busy := t.public[key]; busy {
		return false
	}
	t.public[key] = struct{}{}
	return true
}

// Finish unmarks the key. Finishing an unmarked key is a no-op.
func (t *Tracker) Finish(name string, private bool, uid string) {
	key := trackerKey(name)

	t.mu.Lock()
	defer t.mu.Unlock()

	if private {
		delete(t.private[key], uid)
		return
	}
	delete(t.public, key)
}

// Generating reports whether the key is currently marked.
func (t *Tracker) Generating(name string, private bool, uid string) bool {
	key := trackerKey(name)

	t.mu.RLock()
	defer t.mu.RUnlock()

	if private {
		_, busy := t.private[key][uid]
		return busy
	}
	_, busy := t.public[key]
	return busy
}

// ClearPublic drops every public mark (bulk public clear).
func (t *Tracker) ClearPublic() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.public = make(map[string]struct{})
}

// ClearAll drops every mark.
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.public = make(map[string]struct{})
	t.private = make(map[string]map[string]struct{})
}
