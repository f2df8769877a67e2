// Package render extracts provider-ready plain text from cooked post HTML.
package render

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Tags whose content is never sent to a translation provider.
var skippedSelectors = []string{
	"script",
	"style",
	"code",
	"pre",
	"kbd",
	"samp",
	"[data-no-translate]",
}

// ExtractText converts a cooked HTML fragment into plain text suitable for
// detection and translation. Falls back to the raw input when parsing fails.
func ExtractText(cooked string) string {
	trimmed := strings.TrimSpace(cooked)
	if trimmed == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return trimmed
	}

	for _, selector := range skippedSelectors {
		doc.Find(selector).Remove()
	}

	// Block elements collapse without separators when rendered via Text();
	// join paragraph-level chunks explicitly.
	var chunks []string
	blocks := doc.Find("p, li, h1, h2, h3, h4, h5, h6, blockquote, td, th")
	if blocks.Length() == 0 {
		return collapseWhitespace(doc.Text())
	}

	blocks.Each(func(_ int, sel *goquery.Selection) {
		if sel.Children().Filter("p, li, blockquote").Length() > 0 {
			return
		}
		text := collapseWhitespace(sel.Text())
		if text != "" {
			chunks = append(chunks, text)
		}
	})

	if len(chunks) == 0 {
		return collapseWhitespace(doc.Text())
	}
	return strings.Join(chunks, "\n")
}

func collapseWhitespace(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// CookPlainText wraps raw plain text into minimal cooked HTML, one
// paragraph per blank-line separated block.
func CookPlainText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	for _, block := range strings.Split(trimmed, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(block), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}
