package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/araea/oaibot/command"
	"github.com/araea/oaibot/llm"
	"github.com/araea/oaibot/persona"
	"github.com/araea/oaibot/transport"
)

type fakeClient struct {
	mu       sync.Mutex
	requests []llm.Request
	reply    func(ctx context.Context, req llm.Request) (llm.Result, error)
	models   []string
}

func (f *fakeClient) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.reply != nil {
		return f.reply(ctx, req)
	}
	return llm.Result{Text: "fake answer"}, nil
}

func (f *fakeClient) ListModels(context.Context) ([]string, error) {
	return f.models, nil
}

func (f *fakeClient) lastRequest() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return llm.Request{}
	}
	return f.requests[len(f.requests)-1]
}

type fixture struct {
	bot    *Bot
	reg    *persona.Registry
	tr     *transport.Memory
	client *fakeClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := persona.NewRegistry(persona.Config{
		APIBase: "https://api.example.com",
		APIKey:  "sk-test",
		Models:  []string{"claude-4-sonnet", "gpt-5"},
	})
	client := &fakeClient{}
	tr := transport.NewMemory()
	b := New(reg, Options{
		Transport: tr,
		NewClient: func(_, _ string) llm.Client { return client },
	})
	return &fixture{bot: b, reg: reg, tr: tr, client: client}
}

func (f *fixture) send(text string) {
	f.bot.HandleMessage(context.Background(), f.tr.Inject(transport.Event{
		ChatID: "chat",
		UserID: "alice",
		Text:   text,
	}))
}

func TestCreateAndChat(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.send("##Bot(helper) gpt-5 You help people")
	if got := f.tr.LastText(); !strings.Contains(got, "Created Bot") {
		t.Fatalf("create reply = %q", got)
	}

	f.send("Bot hello there")
	if got := f.tr.LastText(); got != "fake answer" {
		t.Fatalf("chat reply = %q", got)
	}

	hist, err := f.reg.History("Bot", false, "")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(hist) != 2 || hist[0].Content != "hello there" || hist[1].Role != persona.RoleAssistant {
		t.Fatalf("history = %+v", hist)
	}

	req := f.client.lastRequest()
	if req.Model != "gpt-5" {
		t.Fatalf("request model = %q", req.Model)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != llm.RoleSystem {
		t.Fatalf("request messages = %+v", req.Messages)
	}
}

func TestCreateResolvesModelByIndex(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.send("##Muse 1")
	p, ok := f.reg.Get("Muse")
	if !ok {
		t.Fatalf("persona not created")
	}
	if p.Model != "claude-4-sonnet" {
		t.Fatalf("Model = %q, want index 1 resolved", p.Model)
	}
}

func TestChatEmptyPrompt(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.send("##Bot gpt-5")
	f.send("Bot")
	if got := f.tr.LastText(); !strings.Contains(got, "Say something") {
		t.Fatalf("reply = %q", got)
	}
	if hist, _ := f.reg.History("Bot", false, ""); len(hist) != 0 {
		t.Fatalf("empty chat mutated history: %+v", hist)
	}
}

func TestChatBusyRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.send("##Bot gpt-5")

	started := make(chan struct{})
	release := make(chan struct{})
	f.client.reply = func(context.Context, llm.Request) (llm.Result, error) {
		close(started)
		<-release
		return llm.Result{Text: "slow"}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.send("Bot first")
	}()
	<-started

	f.send("Bot second")
	if got := f.tr.LastText(); !strings.Contains(got, "Already generating") {
		t.Fatalf("busy reply = %q", got)
	}

	close(release)
	<-done
	hist, _ := f.reg.History("Bot", false, "")
	if len(hist) != 2 {
		t.Fatalf("history after release = %+v", hist)
	}
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.send("##Bot gpt-5")

	started := make(chan struct{})
	release := make(chan struct{})
	f.client.reply = func(context.Context, llm.Request) (llm.Result, error) {
		close(started)
		<-release
		return llm.Result{Text: "late"}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.send("Bot question")
	}()
	<-started

	f.send("Bot!")
	if got := f.tr.LastText(); !strings.Contains(got, "Stopped") {
		t.Fatalf("stop reply = %q", got)
	}

	close(release)
	<-done
	hist, _ := f.reg.History("Bot", false, "")
	if len(hist) != 1 {
		t.Fatalf("stale result was committed: %+v", hist)
	}
}

func TestChatTimeout(t *testing.T) {
	t.Parallel()

	reg := persona.NewRegistry(persona.Config{APIBase: "https://x", APIKey: "sk-x"})
	client := &fakeClient{reply: func(ctx context.Context, _ llm.Request) (llm.Result, error) {
		<-ctx.Done()
		return llm.Result{}, ctx.Err()
	}}
	tr := transport.NewMemory()
	b := New(reg, Options{
		Transport:   tr,
		NewClient:   func(_, _ string) llm.Client { return client },
		ChatTimeout: 20 * time.Millisecond,
	})
	if _, err := reg.Upsert(command.CreateSpec{Name: "Bot", Model: "gpt-5"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	b.HandleMessage(context.Background(), transport.Event{ChatID: "c", UserID: "u", Text: "Bot hi"})
	if got := tr.LastText(); !strings.Contains(got, "timed out") {
		t.Fatalf("timeout reply = %q", got)
	}
}

func TestRegenerateReplacesTrailingAssistant(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.send("##Bot gpt-5")
	f.send("Bot question")

	f.client.reply = func(context.Context, llm.Request) (llm.Result, error) {
		return llm.Result{Text: "second answer"}, nil
	}
	f.send("Bot~")

	hist, _ := f.reg.History("Bot", false, "")
	if len(hist) != 2 {
		t.Fatalf("history = %+v", hist)
	}
	if hist[0].Content != "question" || hist[1].Content != "second answer" {
		t.Fatalf("history = %+v", hist)
	}
}

func TestRegenerateWithOverridePrompt(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.send("##Bot gpt-5")
	f.send("Bot question")

	f.send("Bot~ better question")
	hist, _ := f.reg.History("Bot", false, "")
	if len(hist) != 2 || hist[0].Content != "better question" {
		t.Fatalf("history = %+v", hist)
	}
}

func TestPrivateChatIsolated(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.send("##Bot gpt-5")
	f.send("&Bot secret")

	if pub, _ := f.reg.History("Bot", false, ""); len(pub) != 0 {
		t.Fatalf("private chat leaked into public history")
	}
	priv, _ := f.reg.History("Bot", true, "alice")
	if len(priv) != 2 {
		t.Fatalf("private history = %+v", priv)
	}
	if got := f.tr.LastText(); got != "fake answer" {
		t.Fatalf("reply = %q", got)
	}
}

func TestDeleteAtCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.send("##Bot gpt-5")
	f.send("Bot one")
	f.send("Bot two")

	f.send("Bot-1,2")
	if got := f.tr.LastText(); !strings.Contains(got, "Deleted entries 1, 2") {
		t.Fatalf("reply = %q", got)
	}
	hist, _ := f.reg.History("Bot", false, "")
	if len(hist) != 2 {
		t.Fatalf("history = %+v", hist)
	}
}

func TestDeletePersonaCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.send("##Bot gpt-5")
	f.send("-#bot")
	if got := f.tr.LastText(); !strings.Contains(got, "Deleted Bot") {
		t.Fatalf("reply = %q", got)
	}
	if f.reg.Len() != 0 {
		t.Fatalf("persona still registered")
	}
}

func TestAPIConfigByMessage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.client.models = []string{"gpt-5-mini", "internal-embed", "claude-4-sonnet"}

	f.send("https://proxy.example.com/v1 sk-newkey")

	base, key := f.reg.API()
	if base != "https://proxy.example.com/v1" || key != "sk-newkey" {
		t.Fatalf("API = %q / %q", base, key)
	}
	// The keyword filter drops models outside the known families.
	models := f.reg.Models()
	if len(models) != 2 {
		t.Fatalf("models = %v", models)
	}
	if got := f.tr.LastText(); !strings.Contains(got, "Fetched 2 models") {
		t.Fatalf("reply = %q", got)
	}
}

func TestParseAPIConfig(t *testing.T) {
	t.Parallel()

	base, key, ok := parseAPIConfig("https://a.example sk-abc")
	if !ok || base != "https://a.example" || key != "sk-abc" {
		t.Fatalf("got %q %q %v", base, key, ok)
	}
	base, key, ok = parseAPIConfig("sk-abc https://a.example")
	if !ok || base != "https://a.example" || key != "sk-abc" {
		t.Fatalf("reversed order: got %q %q %v", base, key, ok)
	}
	if _, _, ok := parseAPIConfig("https://a.example and some words"); ok {
		t.Fatalf("matched a normal message")
	}
}

func TestHelpCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.send("oai")
	if got := f.tr.LastText(); !strings.Contains(got, "Mode prefixes") {
		t.Fatalf("help reply = %q", got)
	}
}

func TestExportCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.send("##Bot gpt-5")
	f.send("Bot hello")
	f.send("Bot_*")

	var file transport.Sent
	for _, s := range f.tr.Outbox() {
		if s.FileName != "" {
			file = s
		}
	}
	if file.FileName == "" {
		t.Fatalf("no file uploaded: %+v", f.tr.Outbox())
	}
	if !strings.HasPrefix(file.FileName, "Bot_public_alice_") {
		t.Fatalf("file name = %q", file.FileName)
	}
	body := string(file.FileData)
	for _, want := range []string{"Persona:  Bot", "Model:    gpt-5", "hello", "fake answer"} {
		if !strings.Contains(body, want) {
			t.Fatalf("export missing %q:\n%s", want, body)
		}
	}
}

func TestChatReplyListsGeneratedImages(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.send("##Bot gpt-5")
	f.client.reply = func(context.Context, llm.Request) (llm.Result, error) {
		return llm.Result{Text: "here ![pic](https://img.example/a.png)"}, nil
	}
	f.send("Bot draw")

	var imageSends int
	for _, s := range f.tr.Outbox() {
		if s.ImageURL == "https://img.example/a.png" {
			imageSends++
		}
	}
	if imageSends != 1 {
		t.Fatalf("image re-sent %d times, want 1", imageSends)
	}
	if got := f.tr.LastText(); got != "" && !strings.Contains(got, "Image links") {
		// LastText sees the chat reply; the link list rides inside it.
		t.Fatalf("reply = %q", got)
	}
}

func TestUnknownTextIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.send("just chatting with friends")
	if n := len(f.tr.Outbox()); n != 0 {
		t.Fatalf("bot replied to plain text: %+v", f.tr.Outbox())
	}
}

func TestExtractImageURLs(t *testing.T) {
	t.Parallel()

	content := "![a](https://x/a.png) text https://x/b.jpg again ![a](https://x/a.png)"
	got := extractImageURLs(content)
	if len(got) != 2 || got[0] != "https://x/a.png" || got[1] != "https://x/b.jpg" {
		t.Fatalf("extractImageURLs() = %v", got)
	}
}

func TestFilterModels(t *testing.T) {
	t.Parallel()

	in := []string{"gpt-5-mini", "text-embedding-3", "Claude-4-Opus", "whisper-1"}
	got := filterModels(in)
	if len(got) != 2 || got[0] != "gpt-5-mini" || got[1] != "Claude-4-Opus" {
		t.Fatalf("filterModels() = %v", got)
	}
}

func TestDescribeAll(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.send("##Bot gpt-5")

	f.client.reply = func(_ context.Context, req llm.Request) (llm.Result, error) {
		if len(req.Messages) != 1 {
			return llm.Result{}, errors.New("unexpected request shape")
		}
		return llm.Result{Text: `"Go tutor"`}, nil
	}
	f.send("##:gpt-5")

	p, _ := f.reg.Get("Bot")
	if p.Description != "Go tutor" {
		t.Fatalf("Description = %q", p.Description)
	}
	if got := f.tr.LastText(); !strings.Contains(got, "updated 1") {
		t.Fatalf("reply = %q", got)
	}
}

func TestQuoteExpansionFeedsChat(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.send("##Bot gpt-5")

	quoted := f.tr.Inject(transport.Event{ChatID: "chat", UserID: "bob", Text: "the original claim"})
	f.bot.HandleMessage(context.Background(), f.tr.Inject(transport.Event{
		ChatID:   "chat",
		UserID:   "alice",
		Text:     "Bot is this right?",
		QuotedID: quoted.MessageID,
	}))

	hist, _ := f.reg.History("Bot", false, "")
	if len(hist) != 2 {
		t.Fatalf("history = %+v", hist)
	}
	want := fmt.Sprintf("> %s\n\nis this right?", "the original claim")
	if hist[0].Content != want {
		t.Fatalf("prompt = %q, want %q", hist[0].Content, want)
	}
}
