package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/araea/oaibot/command"
	"github.com/araea/oaibot/llm"
	"github.com/araea/oaibot/persona"
	"github.com/araea/oaibot/transport"
)

// execute maps a parsed command onto registry operations. Every branch
// ends in exactly one user-visible reply (chat replies may add media).
func (b *Bot) execute(ctx context.Context, ev transport.Event, cmd command.Command) {
	name, uid := cmd.Persona, ev.UserID
	private := cmd.Scope == command.ScopePrivate

	switch cmd.Action {
	case command.ActionChat:
		b.chat(ctx, ev, cmd, false)

	case command.ActionRegenerate:
		b.chat(ctx, ev, cmd, true)

	case command.ActionStop:
		b.tracker.Finish(name, cmd.PrivateReply, uid)
		if err := b.reg.Bump(name); err != nil {
			b.replyText(ctx, ev, "❌ Persona "+name+" does not exist")
			return
		}
		b.persist(ctx)
		b.replyText(ctx, ev, "🛑 Stopped")

	case command.ActionCopy:
		if cmd.Args == "" {
			b.replyText(ctx, ev, "❌ Give the copy a name: "+name+"~#newname")
			return
		}
		if !command.ValidName(cmd.Args) {
			b.replyText(ctx, ev, "❌ Names are at most 7 characters and free of command symbols")
			return
		}
		if err := b.reg.Copy(name, cmd.Args); err != nil {
			b.replyRegistryError(ctx, ev, err, name, cmd.Args)
			return
		}
		b.persist(ctx)
		b.replyText(ctx, ev, fmt.Sprintf("📑 Copied %s → %s", name, cmd.Args))

	case command.ActionRename:
		if cmd.Args == "" {
			b.replyText(ctx, ev, "❌ Give a new name: "+name+"~=newname")
			return
		}
		if !command.ValidName(cmd.Args) {
			b.replyText(ctx, ev, "❌ Names are at most 7 characters and free of command symbols")
			return
		}
		if err := b.reg.Rename(name, cmd.Args); err != nil {
			b.replyRegistryError(ctx, ev, err, name, cmd.Args)
			return
		}
		b.persist(ctx)
		b.replyText(ctx, ev, fmt.Sprintf("🏷️ Renamed %s → %s", name, cmd.Args))

	case command.ActionSetDescription:
		if cmd.Args == "" {
			b.replyText(ctx, ev, "❌ Give a description: "+name+":description")
			return
		}
		if err := b.reg.SetDescription(name, cmd.Args); err != nil {
			b.replyText(ctx, ev, "❌ Persona "+name+" does not exist")
			return
		}
		b.persist(ctx)
		b.replyText(ctx, ev, "📝 Updated description of "+name)

	case command.ActionSetModel:
		if cmd.Args == "" {
			b.replyText(ctx, ev, "❌ Give a model: "+name+"%model")
			return
		}
		model := b.reg.ResolveModel(cmd.Args)
		old, err := b.reg.SetModel(name, model)
		if err != nil {
			b.replyText(ctx, ev, "❌ Persona "+name+" does not exist")
			return
		}
		b.persist(ctx)
		b.replyText(ctx, ev, fmt.Sprintf("🔄 %s model: %s → %s", name, old, model))

	case command.ActionSetPrompt:
		if err := b.reg.SetPrompt(name, cmd.Args); err != nil {
			b.replyText(ctx, ev, "❌ Persona "+name+" does not exist")
			return
		}
		b.persist(ctx)
		if cmd.Args == "" {
			b.replyText(ctx, ev, "📝 Cleared prompt of "+name)
		} else {
			b.replyText(ctx, ev, "📝 Updated prompt of "+name)
		}

	case command.ActionViewPrompt:
		p, ok := b.reg.Get(name)
		if !ok {
			b.replyText(ctx, ev, "❌ Persona "+name+" does not exist")
			return
		}
		if cmd.TextMode {
			b.replyText(ctx, ev, p.SystemPrompt)
			return
		}
		display := p.SystemPrompt
		if display == "" {
			display = "(empty)"
		} else {
			display = escapeForCodeBlock(display)
		}
		content := fmt.Sprintf("**Model**: `%s`\n\n**Prompt**:\n```\n%s\n```", p.Model, display)
		b.reply(ctx, ev, content, cmd.TextMode, name+" system prompt")

	case command.ActionList:
		b.listPersonas(ctx, ev, cmd)

	case command.ActionListModels:
		b.listModels(ctx, ev, cmd)

	case command.ActionDelete:
		if err := b.reg.Delete(name); err != nil {
			b.replyText(ctx, ev, "❌ Persona "+name+" does not exist")
			return
		}
		b.persist(ctx)
		b.replyText(ctx, ev, "🗑️ Deleted "+name)

	case command.ActionViewAll:
		hist, err := b.reg.History(name, private, uid)
		if err != nil {
			b.replyText(ctx, ev, "❌ Persona "+name+" does not exist")
			return
		}
		if len(hist) == 0 {
			b.replyText(ctx, ev, fmt.Sprintf("📭 %s %s history is empty", name, scopeWord(private)))
			return
		}
		header := fmt.Sprintf("%s %s history (%d entries)", name, scopeWord(private), len(hist))
		b.reply(ctx, ev, formatHistory(hist, 0, cmd.TextMode), cmd.TextMode, header)

	case command.ActionViewAt:
		b.viewAt(ctx, ev, cmd)

	case command.ActionExport:
		b.export(ctx, ev, cmd)

	case command.ActionEditAt:
		if len(cmd.Indices) == 0 {
			b.replyText(ctx, ev, "❌ Give an index: "+name+"'index new content")
			return
		}
		if cmd.Args == "" {
			b.replyText(ctx, ev, "❌ Give the new content")
			return
		}
		idx := cmd.Indices[0]
		if err := b.reg.EditAt(name, private, uid, idx, cmd.Args); err != nil {
			if errors.Is(err, persona.ErrBadIndex) {
				b.replyText(ctx, ev, fmt.Sprintf("❌ Index %d is invalid", idx))
			} else {
				b.replyText(ctx, ev, "❌ Persona "+name+" does not exist")
			}
			return
		}
		b.persist(ctx)
		b.replyText(ctx, ev, fmt.Sprintf("✏️ Edited entry %d", idx))

	case command.ActionDeleteAt:
		if len(cmd.Indices) == 0 {
			b.replyText(ctx, ev, "❌ Give indices: "+name+"-index (1,3,5 or 1-5)")
			return
		}
		deleted, err := b.reg.DeleteAt(name, private, uid, cmd.Indices)
		if err != nil {
			b.replyText(ctx, ev, "❌ Persona "+name+" does not exist")
			return
		}
		if len(deleted) == 0 {
			b.replyText(ctx, ev, "❌ No valid indices")
			return
		}
		b.persist(ctx)
		parts := make([]string, len(deleted))
		for i, d := range deleted {
			parts[i] = fmt.Sprint(d)
		}
		b.replyText(ctx, ev, fmt.Sprintf("🗑️ Deleted entries %s (%d total)", strings.Join(parts, ", "), len(deleted)))

	case command.ActionClearHistory:
		b.tracker.Finish(name, cmd.PrivateReply, uid)
		if err := b.reg.ClearHistory(name, private, uid); err != nil {
			b.replyText(ctx, ev, "❌ Persona "+name+" does not exist")
			return
		}
		b.persist(ctx)
		b.replyText(ctx, ev, fmt.Sprintf("🧹 Cleared %s %s history", name, scopeWord(private)))

	case command.ActionClearAllPublic:
		b.tracker.ClearPublic()
		n := b.reg.ClearAllPublic()
		b.persist(ctx)
		b.replyText(ctx, ev, fmt.Sprintf("🧹 Cleared the public history of %d personas", n))

	case command.ActionClearEverything:
		b.tracker.ClearAll()
		n := b.reg.ClearEverything()
		b.persist(ctx)
		b.replyText(ctx, ev, fmt.Sprintf("⚠️ Cleared every history of %d personas", n))

	case command.ActionHelp:
		b.reply(ctx, ev, helpText, cmd.TextMode, "🤖 Symbolic command help")

	case command.ActionDescribeAll:
		b.describeAll(ctx, ev, cmd.Args)
	}
}

func scopeWord(private bool) string {
	if private {
		return "private"
	}
	return "public"
}

func (b *Bot) replyRegistryError(ctx context.Context, ev transport.Event, err error, src, dst string) {
	switch {
	case errors.Is(err, persona.ErrNameTaken):
		b.replyText(ctx, ev, "❌ "+dst+" already exists")
	case errors.Is(err, persona.ErrNotFound):
		b.replyText(ctx, ev, "❌ Persona "+src+" does not exist")
	default:
		b.replyText(ctx, ev, "❌ "+err.Error())
	}
}

// handleCreate services the ## grammar: create a new persona or update an
// existing one. Model resolution happens inside Upsert.
func (b *Bot) handleCreate(ctx context.Context, ev transport.Event, spec command.CreateSpec) {
	created, err := b.reg.Upsert(spec)
	if err != nil {
		b.replyText(ctx, ev, "❌ "+err.Error())
		return
	}
	b.persist(ctx)

	p, _ := b.reg.Get(spec.Name)
	if created {
		b.replyText(ctx, ev, fmt.Sprintf("🤖 Created %s (model: %s)", p.Name, p.Model))
	} else {
		b.replyText(ctx, ev, fmt.Sprintf("📝 Updated %s (model: %s)", p.Name, p.Model))
	}
}

// listPersonas renders the persona index grouped by model, numbered with
// the registry positions the index commands accept.
func (b *Bot) listPersonas(ctx context.Context, ev transport.Event, cmd command.Command) {
	snap := b.reg.Snapshot()
	if len(snap.Personas) == 0 {
		b.replyText(ctx, ev, "📋 No personas yet, create one with ##name model prompt")
		return
	}

	type entry struct {
		idx int
		p   *persona.Persona
	}
	groups := make(map[string][]entry)
	for i, p := range snap.Personas {
		groups[p.Model] = append(groups[p.Model], entry{idx: i + 1, p: p})
	}
	models := make([]string, 0, len(groups))
	for m := range groups {
		models = append(models, m)
	}
	sort.Strings(models)

	var md strings.Builder
	for _, m := range models {
		entries := groups[m]
		sort.Slice(entries, func(i, j int) bool {
			return strings.ToLower(entries[i].p.Name) < strings.ToLower(entries[j].p.Name)
		})
		fmt.Fprintf(&md, "## 📦 %s (%d)\n\n", m, len(entries))
		for _, e := range entries {
			desc := e.p.Description
			if desc == "" {
				desc = truncate(e.p.SystemPrompt, 20)
			}
			if desc == "" {
				desc = "(no description)"
			}
			fmt.Fprintf(&md, "%d. **%s** — %s\n", e.idx, e.p.Name, truncate(desc, 20))
		}
		md.WriteString("\n")
	}

	header := fmt.Sprintf("📋 Personas (%d total)", len(snap.Personas))
	b.reply(ctx, ev, strings.TrimSpace(md.String()), cmd.TextMode, header)
}

// listModels shows the model list grouped by keyword family, with a usage
// count for models some persona already runs on.
func (b *Bot) listModels(ctx context.Context, ev transport.Event, cmd command.Command) {
	models := b.reg.Models()
	if len(models) == 0 {
		b.replyText(ctx, ev, "⏳ Fetching model list...")
		fetched, err := b.refreshModels(ctx)
		if err != nil {
			b.replyText(ctx, ev, "❌ Fetch failed: "+err.Error())
			return
		}
		models = fetched
	}
	if len(models) == 0 {
		b.replyText(ctx, ev, "📭 No models available (check the filter keywords)")
		return
	}

	usage := make(map[string]int)
	for _, p := range b.reg.Snapshot().Personas {
		usage[p.Model]++
	}

	grouped := make(map[string][]int)
	var other []int
	for i, m := range models {
		lower := strings.ToLower(m)
		matched := false
		for _, kw := range modelKeywords {
			if strings.Contains(lower, kw) {
				grouped[kw] = append(grouped[kw], i)
				matched = true
				break
			}
		}
		if !matched {
			other = append(other, i)
		}
	}

	var md strings.Builder
	writeGroup := func(title string, idxs []int) {
		fmt.Fprintf(&md, "## %s\n\n", title)
		for _, i := range idxs {
			fmt.Fprintf(&md, "%d. `%s`", i+1, models[i])
			if n := usage[models[i]]; n > 0 {
				fmt.Fprintf(&md, " (%d in use)", n)
			}
			md.WriteString("\n")
		}
		md.WriteString("\n")
	}
	for _, kw := range modelKeywords {
		if idxs, ok := grouped[kw]; ok {
			writeGroup(strings.ToUpper(kw[:1])+kw[1:]+" Series", idxs)
		}
	}
	if len(other) > 0 {
		writeGroup("Other Models", other)
	}

	header := fmt.Sprintf("🧩 Models (%d total)", len(models))
	b.reply(ctx, ev, strings.TrimSpace(md.String()), cmd.TextMode, header)
}

// viewAt shows the selected history entries and re-sends any images they
// carry or reference.
func (b *Bot) viewAt(ctx context.Context, ev transport.Event, cmd command.Command) {
	name, uid := cmd.Persona, ev.UserID
	private := cmd.Scope == command.ScopePrivate

	hist, err := b.reg.History(name, private, uid)
	if err != nil {
		b.replyText(ctx, ev, "❌ Persona "+name+" does not exist")
		return
	}

	var blocks []string
	var extraImages []string
	for _, i := range cmd.Indices {
		if i < 1 || i > len(hist) {
			continue
		}
		m := hist[i-1]
		content := m.Content
		extraImages = append(extraImages, extractImageURLs(content)...)
		extraImages = append(extraImages, m.Images...)

		if cmd.TextMode {
			content = inlineImageLinks(content)
		}
		if len(m.Images) > 0 {
			if content != "" {
				content += "\n\n"
			}
			for _, u := range m.Images {
				switch {
				case cmd.TextMode && strings.HasPrefix(u, "data:"):
					content += "\n- [Base64 Image]"
				case cmd.TextMode:
					content += "\n- " + u
				default:
					content += fmt.Sprintf("\n![image](%s)", u)
				}
			}
		}
		blocks = append(blocks, fmt.Sprintf("**#%d %s**\n%s", i, roleEmoji(m.Role), content))
	}

	if len(blocks) == 0 {
		b.replyText(ctx, ev, "❌ No valid indices")
		return
	}
	b.reply(ctx, ev, strings.Join(blocks, "\n\n---\n\n"), cmd.TextMode, name+" history")
	for _, url := range extraImages {
		if err := b.tr.ReplyImage(ctx, ev, url); err != nil {
			b.log.Error("image reply failed", "error", err)
		}
	}
}

// export writes the transcript as a text file and delivers it through the
// transport.
func (b *Bot) export(ctx context.Context, ev transport.Event, cmd command.Command) {
	name, uid := cmd.Persona, ev.UserID
	private := cmd.Scope == command.ScopePrivate

	p, ok := b.reg.Get(name)
	if !ok {
		b.replyText(ctx, ev, "❌ Persona "+name+" does not exist")
		return
	}
	hist, err := b.reg.History(name, private, uid)
	if err != nil {
		b.replyText(ctx, ev, "❌ Persona "+name+" does not exist")
		return
	}
	if len(hist) == 0 {
		b.replyText(ctx, ev, "📭 History is empty")
		return
	}

	content := formatExport(name, p.Model, scopeWord(private), hist)
	fname := fmt.Sprintf("%s_%s_%s_%s.txt", name, scopeWord(private), uid, time.Now().Format("20060102150405"))
	if err := b.tr.UploadFile(ctx, ev, fname, []byte(content)); err != nil {
		b.replyText(ctx, ev, "❌ Upload failed: "+err.Error())
		return
	}
	b.replyText(ctx, ev, "📤 Exported: "+fname)
}

const describePrompt = "Read the following system prompt and produce an extremely short description (a role tag) for the persona.\n" +
	"Rules:\n1. At most 10 characters\n2. No punctuation\n3. Output only the description, no explanation\n\nSystem prompt:\n%s"

// describeAll asks the provider for a short description for every persona
// whose description is empty or still the creation placeholder.
func (b *Bot) describeAll(ctx context.Context, ev transport.Event, modelRef string) {
	targets := b.reg.NeedsDescription()
	if len(targets) == 0 {
		b.replyText(ctx, ev, "✅ Every persona already has a description.")
		return
	}

	baseURL, apiKey := b.reg.API()
	if baseURL == "" || apiKey == "" {
		b.replyText(ctx, ev, "❌ API not configured")
		return
	}

	model := b.reg.DefaultModelName()
	if modelRef != "" {
		model = b.reg.ResolveModel(modelRef)
	}

	b.replyText(ctx, ev, fmt.Sprintf("🤖 Generating descriptions for %d personas with [%s]...", len(targets), model))

	client := b.newClient(baseURL, apiKey)
	updated := 0
	for _, p := range targets {
		res, err := client.Chat(ctx, llm.Request{
			Model:    model,
			Messages: []llm.Message{llm.TextMessage(llm.RoleUser, fmt.Sprintf(describePrompt, p.SystemPrompt))},
		})
		if err != nil {
			b.log.Warn("description generation failed", "persona", p.Name, "error", err)
			continue
		}
		desc := strings.Trim(strings.TrimSpace(res.Text), `"“”.。`)
		if desc == "" {
			continue
		}
		if err := b.reg.SetDescription(p.Name, truncate(desc, 10)); err != nil {
			continue
		}
		b.persist(ctx)
		updated++
	}

	b.replyText(ctx, ev, fmt.Sprintf("✅ Done, updated %d descriptions.", updated))
}
