package coach

import (
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/chat"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm"
)

// Sampling defaults shared by every chat mode.
const (
	DefaultTemperature    = 1.6
	CreativeTemperature   = 2.0
	AnalyticalTemperature = 1.4
	DefaultTopP           = 0.95
	DefaultTopK           = 64
	ThinkingBudget        = 32768
)

// Params are the generation settings a mode implies.
type Params struct {
	Temperature    float64
	TopP           float64
	TopK           int
	ThinkingBudget int
	Grounding      llm.Grounding
}

// ParamsFor returns the generation settings for mode. Creative modes run hot,
// company analysis runs cooler, and location modes ground in maps data while
// every other mode grounds in web search.
func ParamsFor(mode chat.Mode) Params {
	p := Params{
		Temperature:    DefaultTemperature,
		TopP:           DefaultTopP,
		TopK:           DefaultTopK,
		ThinkingBudget: ThinkingBudget,
		Grounding:      llm.GroundingSearch,
	}
	switch mode {
	case chat.ModeCreativeIdeas, chat.ModeProductIncubation, chat.ModeSalesBoost,
		chat.ModeProSalesCampaign, chat.ModePromptEngineering:
		p.Temperature = CreativeTemperature
	case chat.ModeCompanyAnalysis:
		p.Temperature = AnalyticalTemperature
	}
	if mode == chat.ModeMaps || mode == chat.ModeLocationBusiness {
		p.Grounding = llm.GroundingMaps
	}
	return p
}

// Apply copies the settings onto req.
func (p Params) Apply(req *llm.CompletionRequest) {
	req.Temperature = p.Temperature
	req.TopP = p.TopP
	req.TopK = p.TopK
	req.ThinkingBudget = p.ThinkingBudget
	req.Grounding = p.Grounding
}
