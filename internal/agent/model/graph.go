package model

// AppState stores per-invocation bookkeeping for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers or compose.ProcessState.
//   - The conversation itself is never kept here; it flows between nodes as
//     ConversationState values and is returned to the caller.
type AppState struct {
	ConversationID string
	Classified     bool    // router classified the intent during this invocation
	Reentries      int     // agent self-loop passes taken during this invocation
	TotalCostUSD   float64 // accumulated LLM cost for this turn
}

// TurnRequest is one HTTP turn handed to the graph.
type TurnRequest struct {
	ConversationID string            `json:"conversation_id"`
	Query          string            `json:"query"`
	State          ConversationState `json:"state"`
}

// TurnResponse is the graph output for one turn.
type TurnResponse struct {
	Result string            `json:"result"`
	State  ConversationState `json:"state"`
}
