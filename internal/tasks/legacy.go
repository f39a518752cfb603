package tasks

import (
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// LegacyGroupName names the group synthesized from a legacy checklist.
const LegacyGroupName = "Checklist"

// The parser configuration never changes; goldmark creates per-call state
// in Parse, so one instance is shared.
var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

func markdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownInstance
}

var checkboxPrefix = regexp.MustCompile(`^\[[ xX]\]\s*`)

// ParseLegacy extracts markdown task-list items ("- [ ] open", "- [x] done")
// from raw and wraps them in a single group. Nested items are flattened in
// document order. It reports false when raw holds no checklist item at all.
func ParseLegacy(raw string) (Group, bool) {
	if strings.TrimSpace(raw) == "" {
		return Group{}, false
	}
	source := []byte(normalizeNewlines(raw))
	document := markdown().Parser().Parse(text.NewReader(source))

	now := timeNow()
	var items []Task
	_ = ast.Walk(document, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || node.Kind() != extast.KindTaskCheckBox {
			return ast.WalkContinue, nil
		}
		checkbox := node.(*extast.TaskCheckBox)
		description := checklistItemText(checkbox.Parent(), source)
		if description == "" {
			return ast.WalkContinue, nil
		}
		task := Task{
			ID:          uuid.NewString(),
			Description: description,
			Completed:   checkbox.IsChecked,
			Priority:    PriorityNone,
			CreatedAt:   now,
		}
		if task.Completed {
			completedAt := now
			task.CompletedAt = &completedAt
		}
		items = append(items, task)
		return ast.WalkContinue, nil
	})
	if len(items) == 0 {
		return Group{}, false
	}
	return Group{
		Name:          LegacyGroupName,
		Tasks:         items,
		HideCompleted: true,
	}, true
}

// checklistItemText joins the source lines of the block holding a checkbox
// and drops the checkbox marker itself.
func checklistItemText(block ast.Node, source []byte) string {
	if block == nil {
		return ""
	}
	lines := block.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		line := strings.TrimSpace(string(segment.Value(source)))
		if line != "" {
			parts = append(parts, line)
		}
	}
	joined := strings.Join(parts, " ")
	return strings.TrimSpace(checkboxPrefix.ReplaceAllString(joined, ""))
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
