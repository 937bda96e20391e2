package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/chat"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/observe"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm"
)

// suggestionSchema is the JSON shape requested from the model.
var suggestionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"recommendedMode": map[string]any{"type": "string"},
		"reason":          map[string]any{"type": "string"},
		"label":           map[string]any{"type": "string"},
	},
	"required": []string{"recommendedMode", "reason", "label"},
}

// Suggest asks the model which mode would serve the conversation best. It
// returns nil when the session has fewer than two messages, or when the model
// names a mode that does not exist.
func (s *Service) Suggest(ctx context.Context, sessionID string) (*chat.Suggestion, error) {
	sess, err := s.chats.Session(sessionID)
	if err != nil {
		return nil, err
	}
	if len(sess.Messages) < 2 {
		return nil, nil
	}
	ctx, span := observe.StartSpan(ctx, "coach.suggest")
	defer span.End()

	start := time.Now()
	resp, err := s.suggester.Complete(ctx, llm.CompletionRequest{
		Messages:       []llm.Message{{Role: llm.RoleUser, Content: suggestionPrompt(sess)}},
		ResponseSchema: suggestionSchema,
	})
	s.record(ctx, "suggest", start, err)
	if err != nil {
		return nil, fmt.Errorf("coach: suggest: %w", err)
	}
	if resp == nil {
		return nil, nil
	}
	return parseSuggestion(resp.Content), nil
}

func suggestionPrompt(sess chat.Session) string {
	recent := sess.Messages[max(0, len(sess.Messages)-4):]
	var convo strings.Builder
	for _, m := range recent {
		fmt.Fprintf(&convo, "%s: %s\n", m.Role, m.Content)
	}

	var modes []string
	for _, m := range chat.Modes() {
		if m != sess.Mode && m != chat.ModeGuide {
			modes = append(modes, m.Enum())
		}
	}

	return fmt.Sprintf(`Analyse this conversation and recommend the SINGLE best tool (mode) to use next.
Conversation:
%s
Available modes: %s
Rules:
1. Prices or money -> FINANCE or TOP_INVESTOR
2. Negotiation -> IRAN_NEGOTIATION
3. Logo or visuals -> IMAGE_GENERATION
4. Location or city -> LOCATION_BUSINESS or MAPS
5. Brainstorming -> CREATIVE_IDEAS
6. Testing for failure -> COMPANY_ANALYSIS
7. Growth or sales -> SALES_BOOST
8. Networking -> ADVANCED_NETWORKING
9. Writing prompts -> PROMPT_ENGINEERING
Reply with JSON: {"recommendedMode": "<mode>", "reason": "<short Persian reason>", "label": "<short Persian action label>"}`,
		convo.String(), strings.Join(modes, ", "))
}

// parseSuggestion decodes the model's JSON answer. Code fences around the
// object are tolerated.
func parseSuggestion(content string) *chat.Suggestion {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw struct {
		RecommendedMode string `json:"recommendedMode"`
		Reason          string `json:"reason"`
		Label           string `json:"label"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return nil
	}
	mode, err := chat.ParseMode(raw.RecommendedMode)
	if err != nil {
		return nil
	}
	return &chat.Suggestion{Mode: mode, Reason: raw.Reason, Label: raw.Label}
}
