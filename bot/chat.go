package bot

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/araea/oaibot/command"
	"github.com/araea/oaibot/llm"
	"github.com/araea/oaibot/persona"
	"github.com/araea/oaibot/transport"
)

// chat runs a completion for a chat or regenerate command. The tracker slot
// is held for the whole call; stale results die on the version check.
func (b *Bot) chat(ctx context.Context, ev transport.Event, cmd command.Command, regen bool) {
	name, uid := cmd.Persona, ev.UserID
	private := cmd.PrivateReply
	prompt := cmd.Args
	media := append(append([]string{}, ev.Images...), ev.Videos...)

	if !b.tracker.TryStart(name, private, uid) {
		b.replyText(ctx, ev, "⏳ Already generating, wait or stop with "+name+"!")
		return
	}
	defer b.tracker.Finish(name, private, uid)

	p, ok := b.reg.Get(name)
	if !ok {
		b.replyText(ctx, ev, "❌ Persona "+name+" does not exist")
		return
	}
	baseURL, apiKey := b.reg.API()
	if baseURL == "" || apiKey == "" {
		b.replyText(ctx, ev, "❌ API not configured")
		return
	}

	hist, err := b.reg.History(name, private, uid)
	if err != nil {
		b.replyText(ctx, ev, "❌ Persona "+name+" does not exist")
		return
	}

	if regen {
		if n := len(hist); n > 0 && hist[n-1].Role == persona.RoleAssistant {
			hist = hist[:n-1]
		}
		if prompt != "" {
			if n := len(hist); n > 0 && hist[n-1].Role == persona.RoleUser {
				hist = hist[:n-1]
			}
			hist = append(hist, persona.NewMessage(persona.RoleUser, prompt, media))
		}
	} else {
		if prompt == "" && len(media) == 0 {
			b.replyText(ctx, ev, "💬 Say something")
			return
		}
		hist = append(hist, persona.NewMessage(persona.RoleUser, prompt, media))
	}

	version, err := b.reg.BeginGeneration(name, private, uid, hist)
	if err != nil {
		b.replyText(ctx, ev, "❌ Persona "+name+" does not exist")
		return
	}
	b.persist(ctx)

	cctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	res, err := b.newClient(baseURL, apiKey).Chat(cctx, llm.Request{
		Model:    p.Model,
		Messages: buildMessages(p.SystemPrompt, hist),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			b.replyText(ctx, ev, "⏳ Request timed out after 5 minutes, stopped.")
		} else {
			b.replyText(ctx, ev, "❌ API error: "+err.Error())
		}
		return
	}
	if res.Text == "" {
		return
	}

	pos, committed := b.reg.CommitAssistant(name, private, uid, version,
		persona.NewMessage(persona.RoleAssistant, res.Text, nil))
	if !committed {
		// Stopped or superseded while we were waiting.
		return
	}
	b.persist(ctx)

	header := fmt.Sprintf("%s #%d reply", name, pos)
	if private {
		header += " (private)"
	}
	b.sendChatReply(ctx, ev, cmd, header, res.Text)
}

// buildMessages flattens history into provider messages. User entries carry
// their images as parts; assistant entries are sent as text with inline
// data images collapsed, their generated images following as a user image
// message so the model can still see them.
func buildMessages(systemPrompt string, hist []persona.Message) []llm.Message {
	var msgs []llm.Message
	if systemPrompt != "" {
		msgs = append(msgs, llm.TextMessage(llm.RoleSystem, systemPrompt))
	}
	for _, m := range hist {
		switch m.Role {
		case persona.RoleUser:
			var parts []llm.Part
			if m.Content != "" {
				parts = append(parts, llm.TextPart(m.Content))
			}
			for _, url := range m.Images {
				parts = append(parts, llm.ImagePart(url))
			}
			if len(parts) == 0 {
				continue
			}
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Parts: parts})
		case persona.RoleAssistant:
			clean := dataImagePattern.ReplaceAllString(m.Content, "[Image Created]")
			msgs = append(msgs, llm.TextMessage(llm.RoleAssistant, clean))
			if urls := extractImageURLs(m.Content); len(urls) > 0 {
				parts := make([]llm.Part, 0, len(urls))
				for _, url := range urls {
					parts = append(parts, llm.ImagePart(url))
				}
				msgs = append(msgs, llm.Message{Role: llm.RoleUser, Parts: parts})
			}
		}
	}
	return msgs
}

// sendChatReply shapes the assistant text for delivery: generated image
// links are listed under the body (picture mode) or substituted inline
// (text mode), then each image is re-sent on its own.
func (b *Bot) sendChatReply(ctx context.Context, ev transport.Event, cmd command.Command, header, content string) {
	imageURLs := extractImageURLs(content)

	display := content
	switch {
	case cmd.TextMode && len(imageURLs) > 0:
		display = inlineImageLinks(content)
	case len(imageURLs) > 0:
		links := make([]string, 0, len(imageURLs))
		for _, u := range imageURLs {
			if strings.HasPrefix(u, "data:") {
				links = append(links, "- [Base64 Image]")
			} else {
				links = append(links, "- "+u)
			}
		}
		display = content + "\n\n---\n**Image links:**\n" + strings.Join(links, "\n")
	}

	b.reply(ctx, ev, display, cmd.TextMode, header)

	for _, url := range imageURLs {
		if err := b.tr.ReplyImage(ctx, ev, url); err != nil {
			b.log.Error("image reply failed", "error", err)
		}
	}
	for _, url := range extractVideoURLs(content) {
		if err := b.tr.ReplyImage(ctx, ev, url); err != nil {
			b.log.Error("video reply failed", "error", err)
		}
	}
}

func (b *Bot) replyText(ctx context.Context, ev transport.Event, text string) {
	if _, err := b.tr.Reply(ctx, ev, text); err != nil {
		b.log.Error("reply failed", "error", err)
	}
}

// reply delivers markdown either as rendered picture or as plain text.
// Rendering failures degrade to text with data images collapsed.
func (b *Bot) reply(ctx context.Context, ev transport.Event, text string, textMode bool, header string) {
	if textMode || b.renderer == nil {
		b.replyText(ctx, ev, text)
		return
	}
	img, err := b.renderer.Render(ctx, header, text)
	if err != nil {
		b.log.Error("markdown render failed", "error", err)
		b.replyText(ctx, ev, collapseInlineImages(text))
		return
	}
	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(img)
	if err := b.tr.ReplyImage(ctx, ev, dataURI); err != nil {
		b.log.Error("image reply failed", "error", err)
	}
}
