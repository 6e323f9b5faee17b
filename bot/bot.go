// Package bot wires the command grammar, the persona registry and the
// model provider into one message handler. Everything user-facing enters
// through HandleMessage.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/araea/oaibot/command"
	"github.com/araea/oaibot/internal/retryutil"
	"github.com/araea/oaibot/llm"
	"github.com/araea/oaibot/persona"
	"github.com/araea/oaibot/providers/openai"
	"github.com/araea/oaibot/render"
	"github.com/araea/oaibot/store"
	"github.com/araea/oaibot/transport"
)

const defaultChatTimeout = 300 * time.Second

var errAPINotConfigured = errors.New("bot: api not configured")

// ClientFactory builds an llm.Client for the currently configured endpoint.
// Reconfiguring the API by message swaps the client without a restart.
type ClientFactory func(baseURL, apiKey string) llm.Client

// Options configures a Bot. Zero fields take defaults; Renderer may stay
// nil, which forces text replies everywhere.
type Options struct {
	Logger      *slog.Logger
	Store       store.Store
	Transport   transport.Transport
	Renderer    render.Renderer
	NewClient   ClientFactory
	ChatTimeout time.Duration
}

// Bot is the message handler. All methods are safe for concurrent use.
type Bot struct {
	log       *slog.Logger
	reg       *persona.Registry
	tracker   *persona.Tracker
	store     store.Store
	tr        transport.Transport
	renderer  render.Renderer
	newClient ClientFactory
	timeout   time.Duration
}

// New builds a Bot around an already-loaded registry.
func New(reg *persona.Registry, opts Options) *Bot {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewClient == nil {
		opts.NewClient = func(baseURL, apiKey string) llm.Client {
			return openai.New(baseURL, apiKey)
		}
	}
	if opts.ChatTimeout <= 0 {
		opts.ChatTimeout = defaultChatTimeout
	}
	return &Bot{
		log:       opts.Logger,
		reg:       reg,
		tracker:   persona.NewTracker(),
		store:     opts.Store,
		tr:        opts.Transport,
		renderer:  opts.Renderer,
		newClient: opts.NewClient,
		timeout:   opts.ChatTimeout,
	}
}

// Registry exposes the underlying registry (the runner saves through it).
func (b *Bot) Registry() *persona.Registry { return b.reg }

var apiConfigPattern = regexp.MustCompile(`(?s)^(https?://\S+)\s+(sk-\S+)$|^(sk-\S+)\s+(https?://\S+)$`)

// parseAPIConfig recognizes a bare "base key" (either order) message.
func parseAPIConfig(text string) (baseURL, apiKey string, ok bool) {
	m := apiConfigPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", "", false
	}
	if m[1] != "" {
		return m[1], m[2], true
	}
	return m[4], m[3], true
}

// HandleMessage routes one inbound event. Stage order matters: API config,
// then global commands, then create, then delete, then persona commands.
// Anything that matches no stage is silently ignored.
func (b *Bot) HandleMessage(ctx context.Context, ev transport.Event) {
	raw := ev.Text
	if strings.TrimSpace(raw) == "" && len(ev.Images) == 0 {
		return
	}

	if baseURL, apiKey, ok := parseAPIConfig(raw); ok {
		b.configureAPI(ctx, ev, baseURL, apiKey)
		return
	}

	if cmd, ok := command.ParseGlobal(raw); ok {
		b.execute(ctx, ev, cmd)
		return
	}

	if spec, ok := command.ParseCreate(raw); ok {
		b.handleCreate(ctx, ev, spec)
		return
	}

	names := b.reg.Names()
	if name, ok := command.MatchDelete(raw, names); ok {
		b.execute(ctx, ev, command.Command{Persona: name, Action: command.ActionDelete})
		return
	}

	if cmd, ok := command.ParsePersona(raw, names); ok {
		if cmd.Action == command.ActionChat || cmd.Action == command.ActionRegenerate {
			expanded := transport.ExpandQuote(ctx, b.tr, ev)
			// The quote block rides in the event text; the parsed args hold
			// only the user's own words after the persona name.
			cmd.Args = mergeQuotedPrompt(expanded.Text, ev.Text, cmd.Args)
			ev = expanded
		}
		b.execute(ctx, ev, cmd)
	}
}

// mergeQuotedPrompt splices the expanded quote block (if any) in front of
// the parsed chat argument.
func mergeQuotedPrompt(expandedText, originalText, args string) string {
	if expandedText == originalText {
		return args
	}
	quote, _, ok := strings.Cut(expandedText, originalText)
	if !ok {
		return args
	}
	return strings.TrimSpace(quote + args)
}

func (b *Bot) configureAPI(ctx context.Context, ev transport.Event, baseURL, apiKey string) {
	b.reg.SetAPI(baseURL, apiKey)
	b.persist(ctx)
	b.replyText(ctx, ev, "✅ API configured: "+baseURL)

	models, err := b.refreshModels(ctx)
	if err != nil {
		b.replyText(ctx, ev, "⚠️ Model list fetch failed: "+err.Error())
		return
	}
	b.replyText(ctx, ev, fmt.Sprintf("📋 Fetched %d models", len(models)))
}

// refreshModels pulls /v1/models, applies the keyword filter (falling back
// to the unfiltered list when the filter leaves nothing) and persists.
func (b *Bot) refreshModels(ctx context.Context) ([]string, error) {
	baseURL, apiKey := b.reg.API()
	if baseURL == "" {
		return nil, errAPINotConfigured
	}
	client := b.newClient(baseURL, apiKey)
	var models []string
	err := retryutil.Do(ctx, b.log, "model_list", 3, 2*time.Second, func(ctx context.Context) error {
		var lerr error
		models, lerr = client.ListModels(ctx)
		return lerr
	})
	if err != nil {
		return nil, err
	}
	if filtered := filterModels(models); len(filtered) > 0 {
		models = filtered
	}
	b.reg.SetModels(models)
	b.persist(ctx)
	return models, nil
}

// persist saves the snapshot. Persistence failures never surface to the
// user; they are logged and the in-memory state stays authoritative.
func (b *Bot) persist(ctx context.Context) {
	if b.store == nil {
		return
	}
	if err := b.store.Save(ctx, b.reg.Snapshot()); err != nil {
		b.log.Error("snapshot save failed", "error", err)
	}
}
