package model

// ================ Config ================
type ConversationConfig struct {
	TTL                string `envconfig:"CONVERSATION_TTL" default:"30m"`
	HistoryMaxMessages int    `envconfig:"CONVERSATION_HISTORY_MAX_MESSAGES" default:"0"`
}

type RouterModelConfig struct {
	Model       string  `envconfig:"ROUTER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"ROUTER_MAX_TOKENS" default:"16"`
	Temperature float32 `envconfig:"ROUTER_TEMPERATURE" default:"0"`
}

type ChatModelConfig struct {
	Model       string  `envconfig:"CHAT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"CHAT_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"CHAT_TEMPERATURE" default:"0.4"`
}

type EmbeddingConfig struct {
	Model      string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	Dimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1024"`
}

// UnknownIntentPolicy decides what the router does with an unrecognised label.
type UnknownIntentPolicy string

const (
	// UnknownIntentDrop stores the raw label and ends the turn without an agent.
	UnknownIntentDrop UnknownIntentPolicy = "drop"
	// UnknownIntentClarify clears the label and asks the user to pick a topic.
	UnknownIntentClarify UnknownIntentPolicy = "clarify"
)

type RouterConfig struct {
	// drop | clarify | housing | loan
	UnknownIntent string `envconfig:"ROUTER_UNKNOWN_INTENT" default:"drop"`
	// Run the classified agent in the same turn instead of returning after classification.
	DispatchOnClassify bool `envconfig:"ROUTER_DISPATCH_ON_CLASSIFY" default:"false"`
}

// Policy normalises UnknownIntent. A known intent name means "route there".
func (c RouterConfig) Policy() (UnknownIntentPolicy, Intent) {
	switch v := UnknownIntentPolicy(c.UnknownIntent); v {
	case UnknownIntentClarify:
		return v, ""
	default:
		if in := Intent(v); in.Known() {
			return "", in
		}
		return UnknownIntentDrop, ""
	}
}

type DialogConfig struct {
	// 0 keeps repeating the no-result message forever.
	MaxNoResultRepeats int `envconfig:"DIALOG_MAX_NO_RESULT_REPEATS" default:"0"`
}

type RAGConfig struct {
	TopK int `envconfig:"RAG_TOP_K" default:"1"`
}

type NoticeAPIConfig struct {
	URL        string `envconfig:"NOTICE_API_URL" default:"http://apis.data.go.kr/B552555/lhLeaseNoticeInfo1/lhLeaseNoticeInfo1"`
	ServiceKey string `envconfig:"NOTICE_API_SERVICE_KEY"`
	Timeout    string `envconfig:"NOTICE_API_TIMEOUT" default:"10s"`
	PageSize   int    `envconfig:"NOTICE_API_PAGE_SIZE" default:"100"`
}
