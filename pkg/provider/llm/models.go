package llm

import "strings"

// modelFamily maps model names to limits. Exactly one of prefix or substr is
// set; the first matching family in [knownModels] wins, so narrower names
// come before the names they extend.
type modelFamily struct {
	prefix string
	substr string
	window int
	output int
	vision bool
}

func (f modelFamily) matches(lower string) bool {
	if f.prefix != "" {
		return strings.HasPrefix(lower, f.prefix)
	}
	return strings.Contains(lower, f.substr)
}

var knownModels = []modelFamily{
	{prefix: "gpt-4o-mini", window: 128_000, output: 16_384, vision: true},
	{prefix: "gpt-4o", window: 128_000, output: 16_384, vision: true},
	{prefix: "gpt-4-turbo", window: 128_000, output: 4_096, vision: true},
	{prefix: "gpt-4", window: 8_192, output: 4_096},
	{prefix: "gpt-3.5-turbo", window: 16_385, output: 4_096},
	{prefix: "o1-mini", window: 128_000, output: 65_536},
	{prefix: "o1", window: 200_000, output: 100_000, vision: true},
	{prefix: "o3-mini", window: 200_000, output: 100_000},
	{prefix: "o3", window: 200_000, output: 100_000, vision: true},

	{substr: "claude-3-opus", window: 200_000, output: 4_096, vision: true},
	{prefix: "claude", window: 200_000, output: 8_192, vision: true},

	{substr: "gemini-2.5", window: 1_048_576, output: 65_536, vision: true},
	{substr: "gemini-3", window: 1_048_576, output: 65_536, vision: true},
	{substr: "gemini-1.5-pro", window: 2_097_152, output: 8_192, vision: true},
	{substr: "gemini", window: 1_048_576, output: 8_192, vision: true},
}

// LookupModel returns the limits of a well-known model family. Unknown
// models get a 128k window and 4k output without vision. Streaming is always
// reported; grounding and JSON schema support depend on the backend and are
// left for the caller to set.
func LookupModel(model string) ModelCapabilities {
	caps := ModelCapabilities{
		ContextWindow:     128_000,
		MaxOutputTokens:   4_096,
		SupportsStreaming: true,
	}
	lower := strings.ToLower(model)
	for _, f := range knownModels {
		if f.matches(lower) {
			caps.ContextWindow = f.window
			caps.MaxOutputTokens = f.output
			caps.SupportsVision = f.vision
			break
		}
	}
	return caps
}

// EstimateTokens approximates the prompt size of messages at four bytes per
// token plus four tokens of framing per message. Each attachment adds
// perAttachment tokens.
func EstimateTokens(messages []Message, perAttachment int) int {
	total := 0
	for _, m := range messages {
		total += (len(m.Content)+3)/4 + 4
		total += perAttachment * len(m.Attachments)
	}
	return total
}
