package handler

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lh-counsel/server/internal/agent/graph"
	"github.com/lh-counsel/server/internal/agent/model"
	errx "github.com/lh-counsel/server/internal/core/error"
	logx "github.com/lh-counsel/server/pkg/logger"
)

// pageCommand jumps the caller's document viewer without running the graph.
var pageCommand = regexp.MustCompile(`^페이지\s*(\d+)$`)

// ChatRequest is one user turn. State is optional; when omitted the server
// loads the stored state for ConversationID.
type ChatRequest struct {
	ConversationID string                   `json:"conversation_id"`
	Query          string                   `json:"query" binding:"required"`
	State          *model.ConversationState `json:"state,omitempty"`
}

type ChatResponse struct {
	ConversationID string                  `json:"conversation_id"`
	Result         string                  `json:"result"`
	State          model.ConversationState `json:"state"`
}

// ChatHandler handles conversation turn requests
type ChatHandler struct {
	runner graph.Runner
	states model.StateRepository
}

func NewChatHandler(runner graph.Runner, states model.StateRepository) *ChatHandler {
	return &ChatHandler{runner: runner, states: states}
}

// Turn handles POST /api/v1/chat
func (h *ChatHandler) Turn(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errx.BadRequest(err))
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(c, errx.BadRequest(errors.New("query is empty")))
		return
	}
	ctx := c.Request.Context()

	id := req.ConversationID
	if id == "" {
		id = uuid.NewString()
	}

	var state model.ConversationState
	if req.State != nil {
		state = *req.State
	} else if req.ConversationID != "" {
		stored, err := h.states.Load(ctx, id)
		switch {
		case errors.Is(err, model.ErrConversationNotFound):
		case err != nil:
			writeError(c, err)
			return
		default:
			state = *stored
		}
	}

	var resp ChatResponse
	if m := pageCommand.FindStringSubmatch(query); m != nil {
		page, _ := strconv.Atoi(m[1])
		state = state.Clone()
		state.CurrentPage = page
		state.Result = fmt.Sprintf("(페이지 %d)", page)
		resp = ChatResponse{ConversationID: id, Result: state.Result, State: state}
	} else {
		out, err := h.runner.Invoke(ctx, model.TurnRequest{ConversationID: id, Query: query, State: state})
		if err != nil {
			logx.Error().Err(err).Str("conversation_id", id).Msg("Turn failed")
			writeError(c, err)
			return
		}
		resp = ChatResponse{ConversationID: id, Result: out.Result, State: out.State}
	}

	if err := h.states.Save(ctx, id, resp.State); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reset handles DELETE /api/v1/chat/:id
func (h *ChatHandler) Reset(c *gin.Context) {
	id := c.Param("id")
	if err := h.states.Clear(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, err error) {
	status := errx.StatusOf(err)
	msg := errx.SystemErrorMessage
	var appErr *errx.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		logx.Error().Err(err).Int("status", status).Str("path", c.FullPath()).Msg("Request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
