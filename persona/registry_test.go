package persona

import (
	"errors"
	"testing"

	"github.com/araea/oaibot/command"
)

func seedRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(Config{})
	created, err := r.Upsert(command.CreateSpec{Name: "Bot", Description: "assistant", Model: "gpt-4o", Prompt: "You are helpful"})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !created {
		t.Fatalf("Upsert() created = false, want true")
	}
	return r
}

func TestUpsertCreateDefaults(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Config{})
	if _, err := r.Upsert(command.CreateSpec{Name: "Muse"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	p, ok := r.Get("Muse")
	if !ok {
		t.Fatalf("Get() after create failed")
	}
	if p.Model != DefaultModel {
		t.Fatalf("Model = %q, want default %q", p.Model, DefaultModel)
	}
	if p.SystemPrompt != DefaultPrompt {
		t.Fatalf("SystemPrompt = %q, want default", p.SystemPrompt)
	}
	if p.Description == "" {
		t.Fatalf("Description should fall back to a placeholder")
	}
	if p.Version != 0 {
		t.Fatalf("Version = %d, want 0", p.Version)
	}
	if len(p.PublicHistory) != 0 || len(p.PrivateHistories) != 0 {
		t.Fatalf("new persona should have empty histories")
	}
}

func TestUpsertCreateFull(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)
	p, _ := r.Get("Bot")
	if p.Description != "assistant" || p.Model != "gpt-4o" || p.SystemPrompt != "You are helpful" {
		t.Fatalf("persona = %+v, want assistant/gpt-4o/You are helpful", p)
	}
}

func TestUpsertUpdateExisting(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)
	created, err := r.Upsert(command.CreateSpec{Name: "bot", Model: "gpt-5", Prompt: ""})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if created {
		t.Fatalf("Upsert() created = true, want update")
	}
	p, _ := r.Get("Bot")
	if p.Model != "gpt-5" {
		t.Fatalf("Model = %q, want gpt-5", p.Model)
	}
	if p.SystemPrompt != "" {
		t.Fatalf("SystemPrompt = %q, update should overwrite even with empty", p.SystemPrompt)
	}
	if p.Description != "assistant" {
		t.Fatalf("Description = %q, empty update must not clobber it", p.Description)
	}
}

func TestUpsertRejectsInvalidName(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Config{})
	for _, name := range []string{"", "verylongname", "a@b", "a b", "x#y"} {
		if _, err := r.Upsert(command.CreateSpec{Name: name}); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Upsert(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestCopyAndRename(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)
	if err := r.Copy("Bot", "Bot2"); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	p, ok := r.Get("Bot2")
	if !ok || p.Model != "gpt-4o" || p.SystemPrompt != "You are helpful" {
		t.Fatalf("copied persona = %+v", p)
	}
	if len(p.PublicHistory) != 0 {
		t.Fatalf("copy must start with empty histories")
	}

	if err := r.Copy("Bot", "bOT2"); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("Copy() onto taken name error = %v, want ErrNameTaken", err)
	}
	if err := r.Copy("Ghost", "Bot3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Copy() of missing source error = %v, want ErrNotFound", err)
	}

	if err := r.Rename("Bot2", "Twin"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if _, ok := r.Get("Bot2"); ok {
		t.Fatalf("old name still resolves after rename")
	}
	if _, ok := r.Get("twin"); !ok {
		t.Fatalf("new name does not resolve after rename")
	}
}

func TestDeletePersona(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)
	if err := r.Delete("BOT"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("Len() = %d after delete, want 0", r.Len())
	}
	if err := r.Delete("Bot"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete() again error = %v, want ErrNotFound", err)
	}
}

func TestDeleteAtHighToLow(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)
	hist := []Message{
		NewMessage(RoleUser, "one", nil),
		NewMessage(RoleAssistant, "two", nil),
		NewMessage(RoleUser, "three", nil),
		NewMessage(RoleAssistant, "four", nil),
	}
	if _, err := r.BeginGeneration("Bot", false, "", hist); err != nil {
		t.Fatalf("BeginGeneration() error = %v", err)
	}

	deleted, err := r.DeleteAt("Bot", false, "", []int{2, 4})
	if err != nil {
		t.Fatalf("DeleteAt() error = %v", err)
	}
	if len(deleted) != 2 || deleted[0] != 2 || deleted[1] != 4 {
		t.Fatalf("DeleteAt() = %v, want [2 4]", deleted)
	}
	got, _ := r.History("Bot", false, "")
	if len(got) != 2 || got[0].Content != "one" || got[1].Content != "three" {
		t.Fatalf("history after delete = %+v", got)
	}
}

func TestDeleteAtIgnoresDuplicatesAndOutOfRange(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)
	hist := []Message{NewMessage(RoleUser, "a", nil), NewMessage(RoleAssistant, "b", nil)}
	if _, err := r.BeginGeneration("Bot", false, "", hist); err != nil {
		t.Fatalf("BeginGeneration() error = %v", err)
	}

	deleted, err := r.DeleteAt("Bot", false, "", []int{2, 2, 0, 99, -1})
	if err != nil {
		t.Fatalf("DeleteAt() error = %v", err)
	}
	if len(deleted) != 1 || deleted[0] != 2 {
		t.Fatalf("DeleteAt() = %v, want [2]", deleted)
	}
}

func TestEditAtOutOfRangeLeavesHistoryIntact(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)
	hist := []Message{NewMessage(RoleUser, "a", nil)}
	version, err := r.BeginGeneration("Bot", false, "", hist)
	if err != nil {
		t.Fatalf("BeginGeneration() error = %v", err)
	}

	if err := r.EditAt("Bot", false, "", 5, "changed"); !errors.Is(err, ErrBadIndex) {
		t.Fatalf("EditAt() error = %v, want ErrBadIndex", err)
	}
	got, _ := r.History("Bot", false, "")
	if len(got) != 1 || got[0].Content != "a" {
		t.Fatalf("history changed by failed edit: %+v", got)
	}
	v, _ := r.Version("Bot")
	if v != version {
		t.Fatalf("Version = %d after failed edit, want %d", v, version)
	}

	if err := r.EditAt("Bot", false, "", 1, "changed"); err != nil {
		t.Fatalf("EditAt() error = %v", err)
	}
	got, _ = r.History("Bot", false, "")
	if got[0].Content != "changed" {
		t.Fatalf("EditAt() did not apply: %+v", got)
	}
}

func TestPrivateHistoriesIsolatedByUser(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)
	if _, err := r.BeginGeneration("Bot", true, "alice", []Message{NewMessage(RoleUser, "hi", nil)}); err != nil {
		t.Fatalf("BeginGeneration() error = %v", err)
	}

	aliceHist, _ := r.History("Bot", true, "alice")
	bobHist, _ := r.History("Bot", true, "bob")
	if len(aliceHist) != 1 {
		t.Fatalf("alice history = %d entries, want 1", len(aliceHist))
	}
	if len(bobHist) != 0 {
		t.Fatalf("bob history = %d entries, want 0 (absent reads as empty)", len(bobHist))
	}
	publicHist, _ := r.History("Bot", false, "")
	if len(publicHist) != 0 {
		t.Fatalf("public history leaked a private write")
	}
}

func TestVersionSemantics(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)

	version, err := r.BeginGeneration("Bot", false, "", []Message{NewMessage(RoleUser, "hi", nil)})
	if err != nil {
		t.Fatalf("BeginGeneration() error = %v", err)
	}
	if version != 1 {
		t.Fatalf("version after first user message = %d, want 1", version)
	}

	// Commit with the captured version succeeds and does not bump.
	pos, ok := r.CommitAssistant("Bot", false, "", version, NewMessage(RoleAssistant, "hello", nil))
	if !ok {
		t.Fatalf("CommitAssistant() rejected a current version")
	}
	if pos != 2 {
		t.Fatalf("CommitAssistant() position = %d, want 2", pos)
	}
	if v, _ := r.Version("Bot"); v != version {
		t.Fatalf("assistant append bumped version to %d", v)
	}

	// Stop bumps; a commit carrying the stale version is discarded.
	if err := r.Bump("Bot"); err != nil {
		t.Fatalf("Bump() error = %v", err)
	}
	if _, ok := r.CommitAssistant("Bot", false, "", version, NewMessage(RoleAssistant, "late", nil)); ok {
		t.Fatalf("CommitAssistant() accepted a stale version")
	}
	hist, _ := r.History("Bot", false, "")
	if len(hist) != 2 {
		t.Fatalf("stale commit mutated history: %d entries", len(hist))
	}

	// Clear bumps exactly once.
	before, _ := r.Version("Bot")
	if err := r.ClearHistory("Bot", false, ""); err != nil {
		t.Fatalf("ClearHistory() error = %v", err)
	}
	after, _ := r.Version("Bot")
	if after != before+1 {
		t.Fatalf("ClearHistory() bumped %d -> %d, want exactly one", before, after)
	}
}

func TestClearAll(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)
	if _, err := r.Upsert(command.CreateSpec{Name: "Muse"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, err := r.BeginGeneration("Bot", false, "", []Message{NewMessage(RoleUser, "pub", nil)}); err != nil {
		t.Fatalf("BeginGeneration() error = %v", err)
	}
	if _, err := r.BeginGeneration("Muse", true, "alice", []Message{NewMessage(RoleUser, "priv", nil)}); err != nil {
		t.Fatalf("BeginGeneration() error = %v", err)
	}

	if n := r.ClearAllPublic(); n != 2 {
		t.Fatalf("ClearAllPublic() = %d, want 2", n)
	}
	musePriv, _ := r.History("Muse", true, "alice")
	if len(musePriv) != 1 {
		t.Fatalf("ClearAllPublic() touched a private history")
	}

	if n := r.ClearEverything(); n != 2 {
		t.Fatalf("ClearEverything() = %d, want 2", n)
	}
	musePriv, _ = r.History("Muse", true, "alice")
	if len(musePriv) != 0 {
		t.Fatalf("ClearEverything() left a private history")
	}
}

func TestResolveModel(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Config{Models: []string{"claude-4-sonnet", "gpt-5", "gpt-5-mini"}})
	cases := []struct {
		in, want string
	}{
		{"2", "gpt-5"},
		{"0", "0"}, // out-of-range index, no substring match: keep literal
		{"CLAUDE", "claude-4-sonnet"},
		{"mini", "gpt-5-mini"},
		{"custom-model", "custom-model"},
	}
	for _, tc := range cases {
		if got := r.ResolveModel(tc.in); got != tc.want {
			t.Fatalf("ResolveModel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)
	if _, err := r.BeginGeneration("Bot", false, "", []Message{NewMessage(RoleUser, "hi", nil)}); err != nil {
		t.Fatalf("BeginGeneration() error = %v", err)
	}

	snap := r.Snapshot()
	snap.Personas[0].PublicHistory[0].Content = "mutated"
	snap.Personas[0].Name = "Evil"

	p, ok := r.Get("Bot")
	if !ok {
		t.Fatalf("registry lost persona after snapshot mutation")
	}
	if p.PublicHistory[0].Content != "hi" {
		t.Fatalf("snapshot shares history storage with the registry")
	}
}
