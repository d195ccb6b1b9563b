package services

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/soldano/reagent/internal/core/domain"
)

// ToolCallMarker introduces the structured tool-call block in model output.
const ToolCallMarker = "TOOL_CALL"

// ToolCallParser extracts tool invocations from free-form LLM output.
// It tries a fixed list of encodings in priority order and never fails on
// malformed input: a plain-text answer must not be misclassified as a
// broken tool call.
type ToolCallParser struct {
	logger *slog.Logger
}

func NewToolCallParser(logger *slog.Logger) *ToolCallParser {
	return &ToolCallParser{logger: logger}
}

var legacyTagRe = regexp.MustCompile(`(?s)<tool_call>\s*<tool_name>(.*?)</tool_name>\s*<arguments>(.*?)</arguments>\s*</tool_call>`)

// Parse returns the first tool call found in the text, or nil when the text
// carries no recognized tool-call encoding (i.e. it is a final answer).
func (p *ToolCallParser) Parse(text string) *domain.ToolCall {
	if call := p.parseMarkerBlock(text); call != nil {
		return call
	}
	if call, _ := p.parseBareJSON(text, 0); call != nil {
		return call
	}
	if calls := p.parseLegacyTags(text); len(calls) > 0 {
		return &calls[0]
	}
	return nil
}

// ParseToolCalls is the batch variant of Parse for non-loop callers. It
// returns every tool call found under the highest-priority encoding that
// matched anything.
func (p *ToolCallParser) ParseToolCalls(text string) []domain.ToolCall {
	var calls []domain.ToolCall

	for _, idx := range markerIndexes(text) {
		if call := p.decodePayloadAfter(text, idx); call != nil {
			calls = append(calls, *call)
		}
	}
	if len(calls) > 0 {
		return calls
	}

	for offset := 0; offset < len(text); {
		call, next := p.parseBareJSON(text, offset)
		if call == nil {
			break
		}
		calls = append(calls, *call)
		offset = next
	}
	if len(calls) > 0 {
		return calls
	}

	return p.parseLegacyTags(text)
}

// parseMarkerBlock handles encoding 1: a line containing the marker token
// followed by a JSON payload naming tool and arguments.
func (p *ToolCallParser) parseMarkerBlock(text string) *domain.ToolCall {
	idxs := markerIndexes(text)
	if len(idxs) == 0 {
		return nil
	}
	for _, idx := range idxs {
		if call := p.decodePayloadAfter(text, idx); call != nil {
			return call
		}
	}
	return nil
}

// markerIndexes returns the end offsets of every line containing the marker.
func markerIndexes(text string) []int {
	var idxs []int
	offset := 0
	for {
		i := strings.Index(text[offset:], ToolCallMarker)
		if i < 0 {
			return idxs
		}
		// Keep the position right after the token: the payload may start on
		// the marker line itself or on the next line.
		end := offset + i + len(ToolCallMarker)
		idxs = append(idxs, end)
		offset = end
	}
}

// decodePayloadAfter extracts and decodes the first JSON object after pos.
func (p *ToolCallParser) decodePayloadAfter(text string, pos int) *domain.ToolCall {
	raw, _, ok := extractJSONObject(text, pos)
	if !ok {
		return nil
	}
	return p.decodeCall(raw)
}

// parseBareJSON handles encoding 2: a {tool, arguments} object located
// anywhere in the text. Returns the call and the offset just past it.
func (p *ToolCallParser) parseBareJSON(text string, from int) (*domain.ToolCall, int) {
	for i := from; i < len(text); {
		start := strings.IndexByte(text[i:], '{')
		if start < 0 {
			return nil, len(text)
		}
		start += i
		raw, end, ok := extractJSONObject(text, start)
		if ok {
			if call := p.decodeCall(raw); call != nil {
				return call, end
			}
			// A balanced object without a tool name: skip past its opening
			// brace so nested candidates are still visited.
		}
		i = start + 1
	}
	return nil, len(text)
}

// parseLegacyTags handles encoding 3: the tag-delimited form
// <tool_call><tool_name>NAME</tool_name><arguments>{...}</arguments></tool_call>.
func (p *ToolCallParser) parseLegacyTags(text string) []domain.ToolCall {
	var calls []domain.ToolCall
	for _, match := range legacyTagRe.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(match[1])
		if name == "" {
			continue
		}
		args, ok := p.decodeArguments(match[2])
		if !ok {
			continue
		}
		calls = append(calls, domain.ToolCall{Name: name, Arguments: args})
	}
	return calls
}

// decodeCall unmarshals a candidate payload, applying lenient repair before
// giving up. Malformed candidates are logged and skipped, never surfaced.
func (p *ToolCallParser) decodeCall(raw string) *domain.ToolCall {
	var call domain.ToolCall
	if err := json.Unmarshal([]byte(raw), &call); err != nil {
		repaired := repairJSON(raw)
		if err2 := json.Unmarshal([]byte(repaired), &call); err2 != nil {
			p.logger.Debug("skipping malformed tool-call candidate", "error", err2, "payload", truncate(raw, 200))
			return nil
		}
	}
	if strings.TrimSpace(call.Name) == "" {
		return nil
	}
	if call.Arguments == nil {
		call.Arguments = map[string]interface{}{}
	}
	return &call
}

func (p *ToolCallParser) decodeArguments(raw string) (map[string]interface{}, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]interface{}{}, true
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		repaired := repairJSON(raw)
		if err2 := json.Unmarshal([]byte(repaired), &args); err2 != nil {
			p.logger.Debug("skipping malformed arguments payload", "error", err2, "payload", truncate(raw, 200))
			return nil, false
		}
	}
	return args, true
}

// extractJSONObject returns the first balanced {...} object at or after pos,
// using brace-depth counting that is string- and escape-aware so nested
// objects and braces inside string values are handled correctly.
func extractJSONObject(text string, pos int) (raw string, end int, ok bool) {
	start := strings.IndexByte(text[pos:], '{')
	if start < 0 {
		return "", 0, false
	}
	start += pos

	depth := 0
	inStr := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inStr {
			escaped = true
			continue
		}
		if ch == '"' {
			inStr = !inStr
			continue
		}
		if inStr {
			continue
		}
		if ch == '{' {
			depth++
		} else if ch == '}' {
			depth--
			if depth == 0 {
				return text[start : i+1], i + 1, true
			}
		}
	}
	return "", 0, false
}

var (
	smartQuoteReplacer = strings.NewReplacer(
		"“", `"`, "”", `"`, // “ ”
		"‘", "'", "’", "'", // ‘ ’
	)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyRe   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_-]*)\s*:`)
)

// repairJSON applies lenient fixes for the malformations LLMs commonly
// produce: smart quotes, single-quoted strings, unquoted keys and trailing
// commas. The result is best-effort; the caller re-validates by unmarshaling.
func repairJSON(raw string) string {
	s := smartQuoteReplacer.Replace(strings.TrimSpace(raw))
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = unquotedKeyRe.ReplaceAllString(s, `$1"$2":`)
	s = convertSingleQuotes(s)
	return s
}

// convertSingleQuotes rewrites 'single quoted' strings to double-quoted,
// leaving apostrophes inside double-quoted strings alone.
func convertSingleQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inDouble := false
	inSingle := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			b.WriteByte(ch)
			escaped = false
			continue
		}
		switch {
		case ch == '\\':
			b.WriteByte(ch)
			escaped = true
		case ch == '"' && !inSingle:
			inDouble = !inDouble
			b.WriteByte(ch)
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
			b.WriteByte('"')
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
