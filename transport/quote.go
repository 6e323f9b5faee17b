package transport

import (
	"context"
	"strings"
)

// ExpandQuote folds a quoted message into the event's prompt text: the
// quoted lines become a markdown blockquote above the user's own text, and
// the quote's media joins the event's media, quote first. Events without a
// quote come back unchanged; a quote that cannot be fetched is dropped
// silently.
func ExpandQuote(ctx context.Context, tr Transport, ev Event) Event {
	if ev.QuotedID == "" {
		return ev
	}
	quoted, ok, err := tr.FetchMessage(ctx, ev.ChatID, ev.QuotedID)
	if err != nil || !ok {
		return ev
	}

	if q := strings.TrimSpace(quoted.Text); q != "" {
		var b strings.Builder
		for _, line := range strings.Split(q, "\n") {
			b.WriteString("> ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		if ev.Text != "" {
			b.WriteString("\n")
			b.WriteString(ev.Text)
		}
		ev.Text = b.String()
	}

	ev.Images = append(append([]string{}, quoted.Images...), ev.Images...)
	ev.Videos = append(append([]string{}, quoted.Videos...), ev.Videos...)
	return ev
}
