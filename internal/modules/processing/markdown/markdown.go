// Package markdown renders diary content to HTML.
package markdown

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

var engine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Strikethrough,
		extension.TaskList,
		extension.Linkify,
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
		htmlrenderer.WithXHTML(),
	),
)

var (
	spoilerPattern       = regexp.MustCompile(`\|\|([\s\S]+?)\|\|`)
	mentionPattern       = regexp.MustCompile(`\b(GH|TW|IG)@([A-Za-z0-9_.]+)\b`)
	imageTagRegex        = regexp.MustCompile(`(?is)<img\s+[^>]*>`)
	imageAttrRegex       = regexp.MustCompile(`([a-zA-Z:_-]+)\s*=\s*"([^"]*)"`)
	figureParagraphRegex = regexp.MustCompile(`(?is)<p>\s*(<figure>[\s\S]*?</figure>)\s*</p>`)
)

var mentionBase = map[string]string{
	"GH": "https://github.com/",
	"TW": "https://twitter.com/",
	"IG": "https://instagram.com/",
}

// Render converts markdown to an HTML fragment. Raw HTML in the source is
// dropped by the renderer.
func Render(content string) string {
	text := strings.TrimSpace(content)
	if text == "" {
		return ""
	}

	text = replaceMention(text)

	var out bytes.Buffer
	if err := engine.Convert([]byte(text), &out); err != nil {
		return "<p>" + template.HTMLEscapeString(text) + "</p>"
	}

	html := replaceSpoiler(out.String())
	return rewriteImages(html)
}

// Document wraps a rendered fragment in a standalone page.
func Document(title, info, body string) string {
	title = template.HTMLEscapeString(strings.TrimSpace(title))
	if title == "" {
		title = "Travel diary"
	}

	var b strings.Builder
	b.Grow(len(body) + 1024)
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n")
	b.WriteString("  <head>\n")
	b.WriteString("    <meta charset=\"UTF-8\" />\n")
	b.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\" />\n")
	b.WriteString("    <meta name=\"referrer\" content=\"no-referrer\" />\n")
	b.WriteString("    <style>\n")
	b.WriteString(pageStyle)
	b.WriteString("    </style>\n")
	b.WriteString("    <title>")
	b.WriteString(title)
	b.WriteString("</title>\n")
	b.WriteString("  </head>\n")
	b.WriteString("  <body>\n")
	if info = strings.TrimSpace(info); info != "" {
		b.WriteString("    <p class=\"info\">")
		b.WriteString(template.HTMLEscapeString(info))
		b.WriteString("</p>\n")
	}
	fmt.Fprintf(&b, "    <article><h1>%s</h1>%s</article>\n", title, body)
	b.WriteString("  </body>\n")
	b.WriteString("</html>")
	return b.String()
}

const pageStyle = `      body { max-width: 760px; margin: 2em auto; padding: 0 1em; font-family: Georgia, serif; line-height: 1.7; color: #222; }
      img { max-width: 100%; }
      figure { margin: 1.5em 0; text-align: center; }
      .info { text-align: center; opacity: 0.7; }
      .spoiler { filter: invert(25%); }
`

// replaceSpoiler runs on rendered HTML so the hidden text is already escaped.
func replaceSpoiler(html string) string {
	return spoilerPattern.ReplaceAllStringFunc(html, func(raw string) string {
		match := spoilerPattern.FindStringSubmatch(raw)
		if len(match) < 2 {
			return raw
		}
		return `<span class="spoiler">` + strings.TrimSpace(match[1]) + `</span>`
	})
}

func replaceMention(text string) string {
	return mentionPattern.ReplaceAllStringFunc(text, func(raw string) string {
		match := mentionPattern.FindStringSubmatch(raw)
		if len(match) < 3 {
			return raw
		}
		base := mentionBase[match[1]]
		if base == "" {
			return raw
		}
		return fmt.Sprintf("[@%s](%s%s)", match[2], base, match[2])
	})
}

// rewriteImages turns images whose alt text starts with "!" into captioned figures.
func rewriteImages(html string) string {
	processed := imageTagRegex.ReplaceAllStringFunc(html, func(tag string) string {
		attrs := parseImageAttrs(tag)
		src := strings.TrimSpace(attrs["src"])
		if src == "" {
			return tag
		}

		alt := strings.TrimSpace(attrs["alt"])
		if !strings.HasPrefix(alt, "!") {
			return `<img src="` + src + `" alt="` + alt + `" loading="lazy"/>`
		}

		caption := strings.TrimSpace(strings.TrimPrefix(alt, "!"))
		if caption == "" {
			caption = strings.TrimSpace(attrs["title"])
		}
		return `<figure><img src="` + src + `" alt="` + caption + `" loading="lazy"/><figcaption>` + caption + `</figcaption></figure>`
	})
	return figureParagraphRegex.ReplaceAllString(processed, "$1")
}

func parseImageAttrs(tag string) map[string]string {
	attrs := make(map[string]string)
	for _, item := range imageAttrRegex.FindAllStringSubmatch(tag, -1) {
		key := strings.ToLower(strings.TrimSpace(item[1]))
		if key == "" {
			continue
		}
		attrs[key] = item[2]
	}
	return attrs
}
