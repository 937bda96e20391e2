package chat

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mode selects the coaching persona, sampling parameters and grounding tool
// used for a chat session. Modes are serialised with their stable ASCII ids.
type Mode string

// Chat modes.
const (
	ModeGuide              Mode = "guide"
	ModeNormal             Mode = "normal"
	ModeThinking           Mode = "thinking"
	ModeCompanyAnalysis    Mode = "company_analysis"
	ModeSearch             Mode = "search"
	ModeMaps               Mode = "maps"
	ModeFileAnalysis       Mode = "file_analysis"
	ModeYouTubeAnalysis    Mode = "youtube_analysis"
	ModeBookAnalysis       Mode = "book_analysis"
	ModeSalesBoost         Mode = "sales_boost"
	ModeLocationBusiness   Mode = "location_business"
	ModeCreativeIdeas      Mode = "creative_ideas"
	ModeFinance            Mode = "finance"
	ModeAdvancedNetworking Mode = "advanced_networking"
	ModeNegotiation        Mode = "negotiation"
	ModeProductIncubation  Mode = "product_incubation"
	ModePromptEngineering  Mode = "prompt_engineering"
	ModeHeroPathChat       Mode = "hero_path_chat"
	ModeHeroPathAudio      Mode = "hero_path_audio"
	ModeHeroSkill          Mode = "hero_skill"
	ModeTopInvestor        Mode = "top_investor"
	ModeLiveConversation   Mode = "live_conversation"
	ModeImageGeneration    Mode = "image_generation"
	ModeImageEditing       Mode = "image_editing"
	ModeProSalesCampaign   Mode = "pro_sales_campaign"
)

type modeInfo struct {
	mode Mode
	// enum is the upper-case name used by suggestion responses.
	enum string
	// label is the Persian display name, which older backups stored in
	// place of the id.
	label string
	title string
}

var modeTable = []modeInfo{
	{ModeGuide, "GUIDE_MODE", "راهنمای هوشمند", "Smart guide"},
	{ModeNormal, "NORMAL", "استراتژی عادی", "Strategy"},
	{ModeThinking, "THINKING", "تحلیل عمیق", "Deep analysis"},
	{ModeCompanyAnalysis, "COMPANY_ANALYSIS", "تحلیل آزمایشگاهی محصول", "Product lab analysis"},
	{ModeSearch, "SEARCH", "جستجوی وب", "Web search"},
	{ModeMaps, "MAPS", "جستجوی نقشه", "Maps search"},
	{ModeFileAnalysis, "FILE_ANALYSIS", "تحلیل فایل", "File analysis"},
	{ModeYouTubeAnalysis, "YOUTUBE_ANALYSIS", "تحلیل یوتیوب", "YouTube analysis"},
	{ModeBookAnalysis, "BOOK_ANALYSIS", "تحلیل کتاب", "Book analysis"},
	{ModeSalesBoost, "SALES_BOOST", "افزایش فروش تخصصی", "Sales boost"},
	{ModeLocationBusiness, "LOCATION_BUSINESS", "کسب‌وکار منطقه‌ای", "Local business"},
	{ModeCreativeIdeas, "CREATIVE_IDEAS", "ایده‌های خلاق", "Creative ideas"},
	{ModeFinance, "FINANCE", "مشاوره مالی", "Financial advice"},
	{ModeAdvancedNetworking, "ADVANCED_NETWORKING", "شبکه سازی پیشرفته", "Advanced networking"},
	{ModeNegotiation, "IRAN_NEGOTIATION", "آموزش مذاکره حرفه‌ای", "Negotiation training"},
	{ModeProductIncubation, "PRODUCT_INCUBATION", "پرورش محصول", "Product incubation"},
	{ModePromptEngineering, "PROMPT_ENGINEERING", "مهندسی پرامپت", "Prompt engineering"},
	{ModeHeroPathChat, "HERO_PATH_CHAT", "مسیر قهرمان (چت)", "Hero's path (chat)"},
	{ModeHeroPathAudio, "HERO_PATH_AUDIO", "مسیر قهرمان (صوتی)", "Hero's path (audio)"},
	{ModeHeroSkill, "HERO_SKILL", "مهارت قهرمان", "Hero skill"},
	{ModeTopInvestor, "TOP_INVESTOR", "سرمایه گذار برتر", "Top investor"},
	{ModeLiveConversation, "LIVE_CONVERSATION", "مکالمه زنده", "Live conversation"},
	{ModeImageGeneration, "IMAGE_GENERATION", "ساخت تصویر", "Image generation"},
	{ModeImageEditing, "IMAGE_EDITING", "ویرایش تصویر", "Image editing"},
	{ModeProSalesCampaign, "PRO_SALES_CAMPAIGN", "کمپین فروش حرفه‌ای", "Pro sales campaign"},
}

var modeIndex = func() map[string]int {
	m := make(map[string]int, len(modeTable)*3)
	for i, info := range modeTable {
		m[string(info.mode)] = i
		m[info.enum] = i
		m[info.label] = i
	}
	return m
}()

// Modes returns every mode in display order.
func Modes() []Mode {
	out := make([]Mode, len(modeTable))
	for i, info := range modeTable {
		out[i] = info.mode
	}
	return out
}

// ParseMode accepts an ASCII id ("finance"), an upper-case enum name
// ("FINANCE") or a Persian display label.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	if i, ok := modeIndex[s]; ok {
		return modeTable[i].mode, nil
	}
	if i, ok := modeIndex[strings.ToLower(s)]; ok {
		return modeTable[i].mode, nil
	}
	return "", fmt.Errorf("chat: unknown mode %q", s)
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	i, ok := modeIndex[string(m)]
	return ok && modeTable[i].mode == m
}

// Live reports whether m is a voice mode that runs a live conversation.
func (m Mode) Live() bool {
	return m == ModeLiveConversation || m == ModeHeroPathAudio
}

// Title returns a short English display name.
func (m Mode) Title() string {
	if i, ok := modeIndex[string(m)]; ok {
		return modeTable[i].title
	}
	return string(m)
}

// Label returns the Persian display name.
func (m Mode) Label() string {
	if i, ok := modeIndex[string(m)]; ok {
		return modeTable[i].label
	}
	return string(m)
}

// Enum returns the upper-case name, e.g. "LOCATION_BUSINESS".
func (m Mode) Enum() string {
	if i, ok := modeIndex[string(m)]; ok {
		return modeTable[i].enum
	}
	return strings.ToUpper(string(m))
}

// UnmarshalJSON accepts any spelling understood by [ParseMode]. Unknown modes
// decode as [ModeNormal] so that a backup written by a newer version still
// loads.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("chat: mode: %w", err)
	}
	parsed, err := ParseMode(s)
	if err != nil {
		parsed = ModeNormal
	}
	*m = parsed
	return nil
}
