package summary

import "strings"

// Entry is one styled line in a report section.
type Entry struct {
	Text   string `json:"text"`
	URL    string `json:"url,omitempty"` // optional link target for the trailing part of Text
	Bold   bool   `json:"bold,omitempty"`
	Italic bool   `json:"italic,omitempty"`
	Indent int    `json:"indent"` // 0 = top-level bullet, 1 = sub-bullet, 2 = sub-sub
}

// Section is a named, ordered group of entries.
type Section struct {
	Title   string  `json:"title"`
	Entries []Entry `json:"entries"`
}

// Report is the structured block-tree form of an EOD summary. Both the
// plain-text and the Slack Block Kit renderings are derived from it, so
// the two can never diverge in content.
type Report struct {
	Date     string    `json:"date"`
	Sections []Section `json:"sections"`
}

// PlainText flattens the report into a newline-joined string: each
// section title followed by its entries, in tree order.
func (r Report) PlainText() string {
	var lines []string
	for _, sec := range r.Sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, e := range sec.Entries {
			lines = append(lines, strings.Repeat("  ", e.Indent)+"- "+e.Text)
		}
	}
	return strings.Join(lines, "\n")
}

// SlackBlocks renders the report as Slack Block Kit rich_text blocks.
//
// Slack draws the bullet glyphs itself from the list indent level
// (0 = filled circle, 1 = open circle, 2 = small square), matching what
// the rich-text editor produces.
func (r Report) SlackBlocks() []map[string]any {
	var elements []map[string]any

	flush := func(indent int, items []map[string]any) []map[string]any {
		if len(items) == 0 {
			return elements
		}
		return append(elements, map[string]any{
			"type":     "rich_text_list",
			"style":    "bullet",
			"indent":   indent,
			"elements": items,
		})
	}

	for _, sec := range r.Sections {
		if sec.Title != "" {
			elements = append(elements, richSection(textElement(sec.Title, true, false)))
		}

		// Consecutive entries at the same indent share one list block.
		var pending []map[string]any
		pendingIndent := 0
		for _, e := range sec.Entries {
			if e.Indent != pendingIndent {
				elements = flush(pendingIndent, pending)
				pending = nil
				pendingIndent = e.Indent
			}
			pending = append(pending, richSection(entryElement(e)))
		}
		elements = flush(pendingIndent, pending)
	}

	if len(elements) == 0 {
		return nil
	}
	return []map[string]any{{
		"type":     "rich_text",
		"elements": elements,
	}}
}

func entryElement(e Entry) map[string]any {
	if e.URL != "" {
		return linkElement(e.URL, e.Text, e.Bold)
	}
	return textElement(e.Text, e.Bold, e.Italic)
}

func textElement(text string, bold, italic bool) map[string]any {
	elem := map[string]any{"type": "text", "text": text}
	style := map[string]bool{}
	if bold {
		style["bold"] = true
	}
	if italic {
		style["italic"] = true
	}
	if len(style) > 0 {
		elem["style"] = style
	}
	return elem
}

func linkElement(url, text string, bold bool) map[string]any {
	elem := map[string]any{"type": "link", "url": url, "text": text}
	if bold {
		elem["style"] = map[string]bool{"bold": true}
	}
	return elem
}

func richSection(elems ...map[string]any) map[string]any {
	cleaned := make([]map[string]any, 0, len(elems))
	for _, e := range elems {
		// Slack rejects empty rich_text text nodes.
		if e["type"] == "text" && e["text"] == "" {
			continue
		}
		cleaned = append(cleaned, e)
	}
	if len(cleaned) == 0 {
		cleaned = []map[string]any{textElement(" ", false, false)}
	}
	return map[string]any{"type": "rich_text_section", "elements": cleaned}
}
