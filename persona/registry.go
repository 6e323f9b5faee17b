package persona

import (
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/araea/oaibot/command"
)

var (
	ErrNotFound    = errors.New("persona: not found")
	ErrNameTaken   = errors.New("persona: name already exists")
	ErrInvalidName = errors.New("persona: invalid name")
	ErrBadIndex    = errors.New("persona: index out of range")
)

const (
	DefaultModel    = "gpt-4o"
	DefaultPrompt   = "You are a helpful assistant."
	placeholderDesc = "new persona"
)

// Config is the persisted registry snapshot. The JSON layout matches the
// on-disk config.json format.
type Config struct {
	APIBase       string     `json:"api_base"`
	APIKey        string     `json:"api_key"`
	Models        []string   `json:"models,omitempty"`
	Personas      []*Persona `json:"agents,omitempty"`
	DefaultModel  string     `json:"default_model,omitempty"`
	DefaultPrompt string     `json:"default_prompt,omitempty"`
}

// Registry is the single process-wide persona store. Every operation takes
// the internal lock; personas never leave the registry except as copies.
type Registry struct {
	mu  sync.RWMutex
	cfg Config
}

func NewRegistry(cfg Config) *Registry {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}
	if cfg.DefaultPrompt == "" {
		cfg.DefaultPrompt = DefaultPrompt
	}
	return &Registry{cfg: cfg}
}

// find returns the live persona for a case-insensitive name, or nil.
// Callers must hold r.mu.
func (r *Registry) find(name string) *Persona {
	for _, p := range r.cfg.Personas {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

// Snapshot deep-copies the registry state for persistence.
func (r *Registry) Snapshot() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := r.cfg
	out.Models = append([]string(nil), r.cfg.Models...)
	out.Personas = make([]*Persona, len(r.cfg.Personas))
	for i, p := range r.cfg.Personas {
		out.Personas[i] = p.clone()
	}
	return out
}

// Names returns persona names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.cfg.Personas))
	for i, p := range r.cfg.Personas {
		names[i] = p.Name
	}
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cfg.Personas)
}

// Get returns a copy of the named persona.
func (r *Registry) Get(name string) (*Persona, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p := r.find(name)
	if p == nil {
		return nil, false
	}
	return p.clone(), true
}

func (r *Registry) API() (base, key string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.APIBase, r.cfg.APIKey
}

func (r *Registry) SetAPI(base, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.APIBase = base
	r.cfg.APIKey = key
}

func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.cfg.Models...)
}

func (r *Registry) SetModels(models []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.Models = append([]string(nil), models...)
}

// ResolveModel maps user input to a model name: a 1-based index into the
// model list, then a case-insensitive substring match, then the literal
// input.
func (r *Registry) ResolveModel(input string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveModelLocked(input)
}

// Upsert applies the `##` create/update grammar: a new name registers a
// persona (empty prompt takes the default, empty description a
// placeholder), an existing name updates model/prompt and, when given, the
// description. It reports whether a persona was created.
func (r *Registry) Upsert(spec command.CreateSpec) (created bool, err error) {
	if !command.ValidName(spec.Name) {
		return false, ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	model := r.resolveModelLocked(spec.Model)

	if p := r.find(spec.Name); p != nil {
		if model != "" {
			p.Model = model
		}
		p.SystemPrompt = spec.Prompt
		if spec.Description != "" {
			p.Description = spec.Description
		}
		return false, nil
	}

	if model == "" {
		model = r.cfg.DefaultModel
	}
	prompt := spec.Prompt
	if prompt == "" {
		prompt = r.cfg.DefaultPrompt
	}
	desc := spec.Description
	if desc == "" {
		desc = placeholderDesc
	}
	r.cfg.Personas = append(r.cfg.Personas, newPersona(spec.Name, model, prompt, desc))
	return true, nil
}

func (r *Registry) resolveModelLocked(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	if i, err := strconv.Atoi(input); err == nil && i > 0 && i <= len(r.cfg.Models) {
		return r.cfg.Models[i-1]
	}
	lower := strings.ToLower(input)
	for _, m := range r.cfg.Models {
		if strings.Contains(strings.ToLower(m), lower) {
			return m
		}
	}
	return input
}

// Copy clones src's model, prompt and description under a new name with
// fresh, empty histories.
func (r *Registry) Copy(src, dst string) error {
	if !command.ValidName(dst) {
		return ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.find(dst) != nil {
		return ErrNameTaken
	}
	from := r.find(src)
	if from == nil {
		return ErrNotFound
	}
	copied := newPersona(dst, from.Model, from.SystemPrompt, from.Description)
	r.cfg.Personas = append(r.cfg.Personas, copied)
	return nil
}

func (r *Registry) Rename(src, dst string) error {
	if !command.ValidName(dst) {
		return ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.find(dst); existing != nil && !strings.EqualFold(existing.Name, src) {
		return ErrNameTaken
	}
	p := r.find(src)
	if p == nil {
		return ErrNotFound
	}
	p.Name = dst
	return nil
}

func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.cfg.Personas {
		if strings.EqualFold(p.Name, name) {
			r.cfg.Personas = append(r.cfg.Personas[:i], r.cfg.Personas[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *Registry) SetDescription(name, desc string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.find(name)
	if p == nil {
		return ErrNotFound
	}
	p.Description = desc
	return nil
}

// SetModel updates the persona's model and returns the previous one.
func (r *Registry) SetModel(name, model string) (old string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.find(name)
	if p == nil {
		return "", ErrNotFound
	}
	old = p.Model
	p.Model = model
	return old, nil
}

func (r *Registry) SetPrompt(name, prompt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.find(name)
	if p == nil {
		return ErrNotFound
	}
	p.SystemPrompt = prompt
	return nil
}

// History returns a copy of the scoped history. A missing private history
// reads as empty.
func (r *Registry) History(name string, private bool, uid string) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p := r.find(name)
	if p == nil {
		return nil, ErrNotFound
	}
	return append([]Message(nil), p.history(private, uid)...), nil
}

// Version returns the persona's current version counter.
func (r *Registry) Version(name string) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p := r.find(name)
	if p == nil {
		return 0, ErrNotFound
	}
	return p.Version, nil
}

// BeginGeneration installs the history that a completion request will run
// against (ending in the new user message) and bumps the version exactly
// once. It returns the version the request must carry to commit its result.
func (r *Registry) BeginGeneration(name string, private bool, uid string, hist []Message) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.find(name)
	if p == nil {
		return 0, ErrNotFound
	}
	p.setHistory(private, uid, hist)
	p.Version++
	return p.Version, nil
}

// CommitAssistant appends a completion result, but only when the captured
// version is still current; a stale result is discarded silently. The
// append itself does not bump the version. It returns the 1-based position
// of the new entry and whether the commit happened.
func (r *Registry) CommitAssistant(name string, private bool, uid string, version uint64, msg Message) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.find(name)
	if p == nil || p.Version != version {
		return 0, false
	}
	p.appendMessage(private, uid, msg)
	return len(p.history(private, uid)), true
}

// Bump invalidates any in-flight generation for the persona (used by stop).
func (r *Registry) Bump(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.find(name)
	if p == nil {
		return ErrNotFound
	}
	p.Version++
	return nil
}

// DeleteAt removes the given 1-based entries and returns the positions
// actually removed, ascending. The version bumps once when anything was
// removed.
func (r *Registry) DeleteAt(name string, private bool, uid string, indices []int) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.find(name)
	if p == nil {
		return nil, ErrNotFound
	}
	deleted := p.deleteAt(private, uid, indices)
	if len(deleted) > 0 {
		p.Version++
	}
	return deleted, nil
}

// EditAt replaces the content of one entry; out-of-range indices leave the
// history untouched and report ErrBadIndex.
func (r *Registry) EditAt(name string, private bool, uid string, idx int, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.find(name)
	if p == nil {
		return ErrNotFound
	}
	if !p.editAt(private, uid, idx, content) {
		return ErrBadIndex
	}
	p.Version++
	return nil
}

func (r *Registry) ClearHistory(name string, private bool, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.find(name)
	if p == nil {
		return ErrNotFound
	}
	p.clearHistory(private, uid)
	p.Version++
	return nil
}

// ClearAllPublic empties every persona's public history and returns the
// persona count.
func (r *Registry) ClearAllPublic() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.cfg.Personas {
		p.PublicHistory = nil
		p.Version++
	}
	return len(r.cfg.Personas)
}

// ClearEverything empties all public and private histories.
func (r *Registry) ClearEverything() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.cfg.Personas {
		p.PublicHistory = nil
		p.PrivateHistories = nil
		p.Version++
	}
	return len(r.cfg.Personas)
}

func (r *Registry) DefaultModelName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.DefaultModel
}

// NeedsDescription lists personas whose description is empty or still the
// creation placeholder, for the batch-describe command.
func (r *Registry) NeedsDescription() []*Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Persona
	for _, p := range r.cfg.Personas {
		if p.Description == "" || p.Description == placeholderDesc {
			out = append(out, p.clone())
		}
	}
	return out
}
