package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

var markdownEngine = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		goldmarkhtml.WithHardWraps(),
	),
)

const pageStyle = `
body {
  margin: 0;
  padding: 24px;
  width: 720px;
  font-family: "Helvetica Neue", "PingFang SC", "Microsoft YaHei", sans-serif;
  font-size: 16px;
  line-height: 1.7;
  color: #24292f;
  background: #ffffff;
}
.header {
  font-size: 14px;
  color: #57606a;
  border-bottom: 1px solid #d0d7de;
  padding-bottom: 8px;
  margin-bottom: 16px;
}
pre {
  background: #f6f8fa;
  border-radius: 6px;
  padding: 12px;
  overflow-x: auto;
  font-size: 14px;
}
code { font-family: "SFMono-Regular", Consolas, monospace; }
blockquote {
  margin: 0;
  padding-left: 12px;
  border-left: 4px solid #d0d7de;
  color: #57606a;
}
table { border-collapse: collapse; }
th, td { border: 1px solid #d0d7de; padding: 4px 10px; }
img { max-width: 100%; }
`

// HTMLDocument renders markdown into a complete standalone HTML page with
// the reply's persona name as a small header line.
func HTMLDocument(title, markdown string) (string, error) {
	var body bytes.Buffer
	if err := markdownEngine.Convert([]byte(markdown), &body); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<style>")
	b.WriteString(pageStyle)
	b.WriteString("</style>\n</head>\n<body>\n")
	if title != "" {
		fmt.Fprintf(&b, "<div class=\"header\">%s</div>\n", html.EscapeString(title))
	}
	b.Write(body.Bytes())
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}
