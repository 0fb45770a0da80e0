package llmbridge

import (
	"regexp"
	"strings"
)

// Item is one unit extracted by the tier-3 natural-language fallback.
type Item struct {
	Title       string
	Description string
	Files       []string
	Functions   []string
}

// The fallback is an explicit two-state machine rather than a pile of
// independent regex tests: every line either starts a new item, updates a
// field of the current one, or extends its description.
type fallbackState int

const (
	stateNoItem fallbackState = iota
	stateInItem
)

var (
	// bulletRE strips a leading bullet or number marker: -, •, *, "3." or "3)".
	bulletRE = regexp.MustCompile(`^\s*(?:[-•*]|\d+[.)])\s+(.*)$`)

	// boldRE matches a bold marker line: **Label**: text.
	boldRE = regexp.MustCompile(`^\s*\*\*([^*]+)\*\*\s*:\s*(.*)$`)
)

// parseNaturalLanguage runs the fallback state machine over raw text.
// It accumulates one current item across lines; a new item begins at a
// bullet "Label: text" line or a bold "**Title**: text" line, and the
// just-completed item is kept only if its title or description is non-empty
// after marker stripping. When the machine extracts nothing from non-empty
// text, a single best-effort item carries the whole text so callers get
// degraded output instead of a hard failure.
func parseNaturalLanguage(raw string) []Item {
	var items []Item
	var current Item
	state := stateNoItem

	push := func() {
		if state == stateInItem && (current.Title != "" || strings.TrimSpace(current.Description) != "") {
			items = append(items, current)
		}
		current = Item{}
	}

	for _, line := range strings.Split(raw, "\n") {
		if title, desc, ok := isItemStart(line); ok {
			push()
			current = Item{Title: title, Description: desc}
			state = stateInItem
			continue
		}

		if field, value, ok := isBoldField(line); ok {
			// Orphaned field lines before any item are dropped.
			if state != stateInItem {
				continue
			}
			switch field {
			case "description":
				current.Description = value
			case "files":
				current.Files = splitList(value)
			case "functions":
				current.Functions = splitList(value)
			}
			continue
		}

		if trimmed := strings.TrimSpace(line); trimmed != "" && state == stateInItem {
			if current.Description == "" {
				current.Description = trimmed
			} else {
				current.Description += "\n" + trimmed
			}
		}
	}
	push()

	if len(items) == 0 {
		if text := strings.TrimSpace(raw); text != "" {
			items = append(items, bestEffortItem(text))
		}
	}
	return items
}

// isItemStart is the item-start transition guard. A line starts an item when
// a bullet or number marker is followed by "Label: text", or when a bold
// "**Title**: text" marker names anything other than a field.
func isItemStart(line string) (title, desc string, ok bool) {
	if m := boldRE.FindStringSubmatch(line); m != nil {
		label := strings.TrimSpace(m[1])
		if !isFieldLabel(label) {
			return label, strings.TrimSpace(m[2]), true
		}
		return "", "", false
	}

	m := bulletRE.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	content := strings.TrimSpace(m[1])
	idx := strings.Index(content, ":")
	if idx <= 0 {
		return "", "", false
	}
	title = strings.TrimSpace(strings.Trim(content[:idx], "* "))
	desc = strings.TrimSpace(content[idx+1:])
	if title == "" {
		return "", "", false
	}
	return title, desc, true
}

// isBoldField is the field-marker transition guard for
// **Description**:, **Files**:, and **Functions**: lines.
func isBoldField(line string) (field, value string, ok bool) {
	m := boldRE.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	label := strings.ToLower(strings.TrimSpace(m[1]))
	if !isFieldLabel(label) {
		return "", "", false
	}
	return label, strings.TrimSpace(m[2]), true
}

func isFieldLabel(label string) bool {
	switch strings.ToLower(label) {
	case "description", "files", "functions":
		return true
	}
	return false
}

// splitList splits a comma-separated Files/Functions list, trimming each
// element and dropping empties.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// bestEffortItem turns unstructured prose into a single item: text up to the
// first colon on the first line becomes the title, the remainder the
// description.
func bestEffortItem(text string) Item {
	firstLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		firstLine = text[:i]
	}
	if idx := strings.Index(firstLine, ":"); idx > 0 {
		return Item{
			Title:       strings.TrimSpace(firstLine[:idx]),
			Description: strings.TrimSpace(text[strings.Index(text, ":")+1:]),
		}
	}
	return Item{Title: firstLine, Description: text}
}
