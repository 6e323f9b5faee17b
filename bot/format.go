package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araea/oaibot/persona"
)

// modelKeywords selects which models survive the list filter and how the
// model list is grouped for display.
var modelKeywords = []string{
	"gpt-5", "claude", "gemini-3", "deepseek", "kimi", "grok-4", "banana", "sora-2",
}

func filterModels(models []string) []string {
	var out []string
	for _, m := range models {
		lower := strings.ToLower(m)
		for _, kw := range modelKeywords {
			if strings.Contains(lower, kw) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

var (
	dataImagePattern = regexp.MustCompile(`!\[.*?\]\((data:image/[^\s)]+)\)`)
	imageURLPattern  = regexp.MustCompile(`!\[.*?\]\(((?:https?://|data:image/)[^\s)]+)\)|https?://\S+\.(?:png|jpg|jpeg|gif|webp|bmp)`)
	videoURLPattern  = regexp.MustCompile(`\[download video\]\((https?://[^\s)]+)\)`)
)

// extractImageURLs pulls image links out of assistant markdown: inline
// image syntax plus bare URLs with an image extension, deduplicated in
// order of first appearance.
func extractImageURLs(content string) []string {
	var urls []string
	seen := make(map[string]struct{})
	for _, m := range imageURLPattern.FindAllStringSubmatch(content, -1) {
		url := m[1]
		if url == "" {
			url = m[0]
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		urls = append(urls, url)
	}
	return urls
}

func extractVideoURLs(content string) []string {
	var urls []string
	for _, m := range videoURLPattern.FindAllStringSubmatch(content, -1) {
		urls = append(urls, m[1])
	}
	return urls
}

// collapseInlineImages replaces inline data-URI images with a short
// placeholder for text-mode output.
func collapseInlineImages(content string) string {
	return dataImagePattern.ReplaceAllString(content, "[image]")
}

// inlineImageLinks rewrites markdown image syntax to the bare URL (data
// URIs become a placeholder), used when a text-mode chat reply carries
// generated images.
var markdownImagePattern = regexp.MustCompile(`!\[.*?\]\(((?:https?://|data:image/)[^\s)]+)\)`)

func inlineImageLinks(content string) string {
	return markdownImagePattern.ReplaceAllStringFunc(content, func(m string) string {
		sub := markdownImagePattern.FindStringSubmatch(m)
		if strings.HasPrefix(sub[1], "data:") {
			return "[image]"
		}
		return sub[1]
	})
}

func roleEmoji(role string) string {
	switch role {
	case persona.RoleUser:
		return "👤"
	case persona.RoleAssistant:
		return "🤖"
	case persona.RoleSystem:
		return "⚙️"
	default:
		return "❓"
	}
}

func roleLabel(role string) string {
	switch role {
	case persona.RoleUser:
		return "👤 User"
	case persona.RoleAssistant:
		return "🤖 Assistant"
	case persona.RoleSystem:
		return "⚙️ System"
	default:
		return role
	}
}

// formatHistory renders numbered history entries as markdown blocks
// separated by rules. offset shifts the displayed numbering.
func formatHistory(hist []persona.Message, offset int, textMode bool) string {
	blocks := make([]string, 0, len(hist))
	for i, m := range hist {
		ts := time.Unix(m.Timestamp, 0).Local().Format("01-02 15:04")

		body := m.Content
		if textMode {
			body = collapseInlineImages(body)
		}

		if len(m.Images) > 0 {
			if body != "" {
				body += "\n\n"
			}
			links := make([]string, 0, len(m.Images))
			for _, u := range m.Images {
				switch {
				case textMode && strings.HasPrefix(u, "data:"):
					links = append(links, "- [Base64 Image]")
				case textMode:
					links = append(links, "- [image] "+u)
				default:
					links = append(links, fmt.Sprintf("![image](%s)", u))
				}
			}
			body += strings.Join(links, "\n")
		}

		if strings.TrimSpace(body) == "" {
			body = "(empty)"
		}

		blocks = append(blocks, fmt.Sprintf("**#%d %s %s**\n%s", offset+i+1, roleEmoji(m.Role), ts, body))
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// formatExport builds the boxed plain-text transcript for file export.
func formatExport(name, model, scope string, hist []persona.Message) string {
	var b strings.Builder
	heavy := strings.Repeat("━", 40)
	sep := strings.Repeat("─", 40)
	thin := strings.Repeat("┄", 40)

	fmt.Fprintf(&b, "┏%s┓\n", heavy)
	fmt.Fprintf(&b, "┃  Persona:  %-28s┃\n", name)
	fmt.Fprintf(&b, "┃  Model:    %-28s┃\n", model)
	fmt.Fprintf(&b, "┃  Scope:    %-28s┃\n", scope)
	fmt.Fprintf(&b, "┃  Exported: %-28s┃\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "┃  Entries:  %-28d┃\n", len(hist))
	fmt.Fprintf(&b, "┗%s┛\n\n", heavy)

	for i, m := range hist {
		ts := time.Unix(m.Timestamp, 0).Local().Format("2006-01-02 15:04:05")
		fmt.Fprintf(&b, "【#%d %s | %s】\n%s\n", i+1, roleLabel(m.Role), ts, thin)
		b.WriteString(dataImagePattern.ReplaceAllString(m.Content, "[image data]"))
		b.WriteString("\n")

		if len(m.Images) > 0 {
			fmt.Fprintf(&b, "\n📷 Attachments (%d):\n", len(m.Images))
			for j, u := range m.Images {
				if strings.HasPrefix(u, "data:") {
					fmt.Fprintf(&b, "   %d. [Base64 Image Data]\n", j+1)
				} else {
					fmt.Fprintf(&b, "   %d. %s\n", j+1, u)
				}
			}
		}
		fmt.Fprintf(&b, "\n%s\n\n", sep)
	}
	return b.String()
}

// truncate limits s to max runes, appending an ellipsis when cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// escapeForCodeBlock makes a prompt safe inside a fenced block: control
// characters are escaped the JSON way while real newlines and tabs stay.
func escapeForCodeBlock(s string) string {
	quoted := strconv.Quote(s)
	trimmed := strings.Trim(quoted, `"`)
	trimmed = strings.ReplaceAll(trimmed, `\n`, "\n")
	return strings.ReplaceAll(trimmed, `\t`, "\t")
}
