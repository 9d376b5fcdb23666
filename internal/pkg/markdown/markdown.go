// Package markdown renders chat replies to sanitized HTML.
package markdown

import (
	"bytes"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	md = goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			// Raw HTML is cleaned by the policy below.
			html.WithUnsafe(),
		),
	)
	policy = newPolicy()
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "span")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// ToHTML converts markdown into HTML that is safe to embed in a page.
func ToHTML(source string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return template.HTML(policy.Sanitize(buf.String())), nil
}

// Escape renders plain text as escaped HTML with line breaks kept.
func Escape(text string) template.HTML {
	escaped := template.HTMLEscapeString(text)
	return template.HTML(bytes.ReplaceAll([]byte(escaped), []byte("\n"), []byte("<br>")))
}
