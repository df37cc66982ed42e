// Package analysis turns raw summarization output into the structured shape
// the cache stores, and decides when a cached analysis must be regenerated.
package analysis

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnparseable indicates the provider response could not be normalized.
// An empty response is a generation failure, never a valid empty analysis.
var ErrUnparseable = errors.New("analysis response unparseable")

const maxListItems = 3

// StructuredAnalysis is the canonical parsed form of one analysis.
type StructuredAnalysis struct {
	Summary           string   `json:"summary"`
	Positives         []string `json:"positives"`
	Alerts            []string `json:"alerts"`
	Insights          []string `json:"insights"`
	RecommendedAction string   `json:"recommended_action"`
}

// Parse normalizes a raw provider response into a StructuredAnalysis. Two
// wire shapes are tolerated: the legacy flat-JSON object and the markdown
// dimension-header shape. Both normalize to the same structure; anything
// else is ErrUnparseable.
func Parse(raw string) (StructuredAnalysis, error) {
	text := stripCodeFence(strings.TrimSpace(raw))
	if text == "" {
		return StructuredAnalysis{}, ErrUnparseable
	}

	if strings.HasPrefix(text, "{") {
		if result, ok := parseLegacyJSON(text); ok {
			return result, nil
		}
	}

	result, ok := parseMarkdown(text)
	if !ok {
		return StructuredAnalysis{}, ErrUnparseable
	}
	return result, nil
}

// parseLegacyJSON handles the flat-JSON shape older prompt versions produced.
func parseLegacyJSON(text string) (StructuredAnalysis, bool) {
	var decoded struct {
		Summary           string   `json:"summary"`
		Positives         []string `json:"positives"`
		Alerts            []string `json:"alerts"`
		Insights          []string `json:"insights"`
		RecommendedAction string   `json:"recommended_action"`
		Recommendation    string   `json:"recommendation"`
	}
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return StructuredAnalysis{}, false
	}

	action := decoded.RecommendedAction
	if action == "" {
		action = decoded.Recommendation
	}

	result := StructuredAnalysis{
		Summary:           strings.TrimSpace(decoded.Summary),
		Positives:         capList(decoded.Positives),
		Alerts:            capList(decoded.Alerts),
		Insights:          capList(decoded.Insights),
		RecommendedAction: strings.TrimSpace(action),
	}
	if result.Summary == "" {
		return StructuredAnalysis{}, false
	}
	return result, true
}

// Section names accepted in the markdown dimension-header shape.
var sectionAliases = map[string]string{
	"summary":               "summary",
	"positives":             "positives",
	"positive observations": "positives",
	"strengths":             "positives",
	"alerts":                "alerts",
	"concerns":              "alerts",
	"warnings":              "alerts",
	"insights":              "insights",
	"observations":          "insights",
	"recommended action":    "action",
	"recommended next step": "action",
	"next step":             "action",
	"recommendation":        "action",
}

// parseMarkdown handles the dimension-header shape: sections introduced by
// markdown headers, list sections carrying bullet items.
func parseMarkdown(text string) (StructuredAnalysis, bool) {
	var result StructuredAnalysis
	var summaryParts, actionParts []string
	current := ""

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if name, ok := headerName(trimmed); ok {
			if section, known := sectionAliases[name]; known {
				current = section
			} else {
				current = ""
			}
			continue
		}

		switch current {
		case "summary":
			summaryParts = append(summaryParts, trimmed)
		case "action":
			actionParts = append(actionParts, stripBullet(trimmed))
		case "positives":
			if item := bulletItem(trimmed); item != "" {
				result.Positives = append(result.Positives, item)
			}
		case "alerts":
			if item := bulletItem(trimmed); item != "" {
				result.Alerts = append(result.Alerts, item)
			}
		case "insights":
			if item := bulletItem(trimmed); item != "" {
				result.Insights = append(result.Insights, item)
			}
		}
	}

	result.Summary = strings.Join(summaryParts, " ")
	result.RecommendedAction = strings.Join(actionParts, " ")
	result.Positives = capList(result.Positives)
	result.Alerts = capList(result.Alerts)
	result.Insights = capList(result.Insights)

	if result.Summary == "" {
		return StructuredAnalysis{}, false
	}
	return result, true
}

// headerName extracts a lowercased section name from a markdown header line.
func headerName(line string) (string, bool) {
	if !strings.HasPrefix(line, "#") {
		return "", false
	}
	rest := strings.TrimLeft(line, "#")
	if !strings.HasPrefix(rest, " ") {
		return "", false
	}
	name := strings.Trim(strings.TrimSpace(rest), "*:")
	name = strings.ToLower(strings.TrimSpace(name))
	return name, name != ""
}

// bulletItem returns the content of a markdown list item, or "" for
// non-list lines.
func bulletItem(line string) string {
	item := stripBullet(line)
	if item == line {
		return ""
	}
	return strings.TrimSpace(item)
}

func stripBullet(line string) string {
	for _, prefix := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	// numbered items: "1. text"
	if len(line) > 2 && line[0] >= '1' && line[0] <= '9' && line[1] == '.' {
		return strings.TrimSpace(line[2:])
	}
	return line
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = text[idx+1:] // drop the language tag line
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func capList(items []string) []string {
	out := make([]string, 0, maxListItems)
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
		if len(out) == maxListItems {
			break
		}
	}
	return out
}
