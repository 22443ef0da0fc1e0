package director

import (
	"strconv"
	"strings"
	"unicode"

	"ensemble/pkg/types"
)

// parseDirective reads a loosely formatted completion into a directive.
// Labeled lines are preferred; otherwise the first line becomes the title
// and the rest the text. An [END] marker upgrades the kind to end.
func parseDirective(content string, kind types.DirectiveKind) types.Directive {
	content = strings.TrimSpace(content)
	if marked := strings.TrimPrefix(content, "[END]"); marked != content {
		content = strings.TrimSpace(marked)
		kind = types.DirectiveEnd
	}

	d := types.Directive{Kind: kind}
	var unlabeled []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch key, value := splitLabel(line); key {
		case "title":
			d.Title = value
		case "directive", "text":
			d.Text = value
		case "interval":
			if n, err := parseInterval(value); err == nil {
				d.Interval = n
			}
		default:
			unlabeled = append(unlabeled, line)
		}
	}

	if d.Title == "" && len(unlabeled) > 0 {
		d.Title = unlabeled[0]
		unlabeled = unlabeled[1:]
	}
	if d.Text == "" {
		d.Text = strings.Join(unlabeled, " ")
	}
	if d.Text == "" {
		d.Text = d.Title
	}
	return d
}

// parseQuestion splits a completion into a question and its options.
func parseQuestion(content string) (string, []string) {
	var question string
	var options []string
	var unlabeled []string

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch key, value := splitLabel(line); key {
		case "question":
			question = value
		case "options":
			for _, opt := range strings.Split(value, ";") {
				if opt = strings.TrimSpace(opt); opt != "" {
					options = append(options, opt)
				}
			}
		default:
			unlabeled = append(unlabeled, line)
		}
	}

	if question == "" && len(unlabeled) > 0 {
		question = unlabeled[0]
	}
	return question, options
}

// parseInterval extracts the first integer from free text.
func parseInterval(content string) (int, error) {
	start := -1
	for i, r := range content {
		if unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return strconv.Atoi(content[start:i])
		}
	}
	if start >= 0 {
		return strconv.Atoi(content[start:])
	}
	return 0, ErrNoInterval
}

// splitLabel splits a "Key: value" line into a lowercase key and its value.
// Lines without a label come back with an empty key.
func splitLabel(line string) (string, string) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", line
	}
	key := strings.ToLower(strings.TrimSpace(line[:idx]))
	if strings.ContainsAny(key, " \t") {
		return "", line
	}
	return key, strings.TrimSpace(line[idx+1:])
}
