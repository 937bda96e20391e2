package llm

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation history.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// Attachments are binary inputs (images, PDFs) sent alongside Content.
	// Only user messages carry attachments.
	Attachments []Attachment
}

// Attachment is an inline binary part of a message.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// Grounding selects a server-side retrieval tool for a request.
type Grounding int

const (
	// GroundingNone disables retrieval.
	GroundingNone Grounding = iota

	// GroundingSearch grounds answers in web search results.
	GroundingSearch

	// GroundingMaps grounds answers in maps and places data.
	GroundingMaps
)

func (g Grounding) String() string {
	switch g {
	case GroundingSearch:
		return "search"
	case GroundingMaps:
		return "maps"
	default:
		return "none"
	}
}

// LatLng is a geographic position in degrees.
type LatLng struct {
	Latitude  float64
	Longitude float64
}

// Source is a grounding citation.
type Source struct {
	Title string
	URI   string
}

// ModelCapabilities describes what a model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsVision indicates the model can process image inputs.
	SupportsVision bool

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool

	// SupportsGrounding indicates the backend honours CompletionRequest.Grounding.
	SupportsGrounding bool

	// SupportsJSONSchema indicates the backend honours CompletionRequest.ResponseSchema.
	SupportsJSONSchema bool
}

// AppendSources adds the sources in add that are not already in dst (by URI).
func AppendSources(dst []Source, add ...Source) []Source {
	for _, s := range add {
		if s.URI == "" {
			continue
		}
		dup := false
		for _, d := range dst {
			if d.URI == s.URI {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, s)
		}
	}
	return dst
}
