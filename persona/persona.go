// Package persona owns the persona registry: named model+prompt
// configurations, their public and per-user private histories, and the
// version counters that invalidate stale completion results.
package persona

import (
	"sort"
	"time"
)

// Persona is a named configuration with independent message histories.
// Personas are owned exclusively by a Registry; callers only ever see
// copies handed out under the registry lock.
type Persona struct {
	Name             string               `json:"name"`
	Description      string               `json:"description,omitempty"`
	Model            string               `json:"model"`
	SystemPrompt     string               `json:"system_prompt"`
	PublicHistory    []Message            `json:"public_history,omitempty"`
	PrivateHistories map[string][]Message `json:"private_histories,omitempty"`
	Version          uint64               `json:"generation_id,omitempty"`
	CreatedAt        int64                `json:"created_at,omitempty"`
}

func newPersona(name, model, prompt, description string) *Persona {
	return &Persona{
		Name:         name,
		Description:  description,
		Model:        model,
		SystemPrompt: prompt,
		CreatedAt:    time.Now().Unix(),
	}
}

// history returns the sequence for the given scope. A private history that
// does not exist yet reads as empty rather than as an error.
func (p *Persona) history(private bool, uid string) []Message {
	if private {
		return p.PrivateHistories[uid]
	}
	return p.PublicHistory
}

// setHistory replaces the sequence for the given scope, lazily creating the
// private map on first write.
func (p *Persona) setHistory(private bool, uid string, hist []Message) {
	if private {
		if p.PrivateHistories == nil {
			p.PrivateHistories = make(map[string][]Message)
		}
		p.PrivateHistories[uid] = hist
	} else {
		p.PublicHistory = hist
	}
}

func (p *Persona) appendMessage(private bool, uid string, msg Message) {
	p.setHistory(private, uid, append(p.history(private, uid), msg))
}

func (p *Persona) clearHistory(private bool, uid string) {
	if private {
		if _, ok := p.PrivateHistories[uid]; ok {
			p.PrivateHistories[uid] = nil
		}
	} else {
		p.PublicHistory = nil
	}
}

// deleteAt removes the 1-based positions from the scoped history,
// processing from highest to lowest so earlier removals never shift later
// targets. Out-of-range and duplicate indices are ignored. The positions
// actually removed come back in ascending order.
func (p *Persona) deleteAt(private bool, uid string, indices []int) []int {
	hist := p.history(private, uid)

	sorted := make([]int, len(indices))
	copy(sorted, indices)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	var deleted []int
	prev := 0
	for _, i := range sorted {
		if i == prev {
			continue
		}
		prev = i
		if i > 0 && i <= len(hist) {
			hist = append(hist[:i-1], hist[i:]...)
			deleted = append(deleted, i)
		}
	}

	if len(deleted) > 0 {
		p.setHistory(private, uid, hist)
		// restore ascending order for display
		for l, r := 0, len(deleted)-1; l < r; l, r = l+1, r-1 {
			deleted[l], deleted[r] = deleted[r], deleted[l]
		}
	}
	return deleted
}

// editAt replaces the content of the 1-based entry. It either fully
// succeeds or leaves the history untouched.
func (p *Persona) editAt(private bool, uid string, idx int, content string) bool {
	hist := p.history(private, uid)
	if idx < 1 || idx > len(hist) {
		return false
	}
	hist[idx-1].Content = content
	return true
}

// clone deep-copies the persona so registry internals never escape.
func (p *Persona) clone() *Persona {
	out := *p
	out.PublicHistory = append([]Message(nil), p.PublicHistory...)
	if p.PrivateHistories != nil {
		out.PrivateHistories = make(map[string][]Message, len(p.PrivateHistories))
		for uid, hist := range p.PrivateHistories {
			out.PrivateHistories[uid] = append([]Message(nil), hist...)
		}
	}
	return &out
}
