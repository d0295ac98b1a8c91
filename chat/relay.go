package chat

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"atlasd/model"
	"atlasd/session"
)

// Responder generates fragment sequences; satisfied by *Adapter.
type Responder interface {
	Respond(ctx context.Context, userText string, history []model.Message, pageContext map[string]any) <-chan model.Fragment
}

// Relay translates a fragment sequence into the SSE event stream for one
// session, persisting the finished assistant message along the way.
type Relay struct {
	store     *session.Store
	responder Responder
	logger    *zap.Logger
}

func NewRelay(store *session.Store, responder Responder, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{store: store, responder: responder, logger: logger}
}

// Stream generates a response to the session's most recent user message.
// The returned channel yields exactly one start event, then zero or more
// chunk/tool_notice/tool_result events, then exactly one terminal end or
// error event, and is closed. A successful response is appended to the
// session before the end event is emitted.
func (r *Relay) Stream(ctx context.Context, sessionID string) <-chan model.StreamEvent {
	out := make(chan model.StreamEvent)

	go func() {
		defer close(out)

		emit := func(ev model.StreamEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit(model.StreamEvent{Type: model.EventStart, SessionID: sessionID}) {
			return
		}

		userText, pageContext, ok := r.store.LastUserMessage(sessionID)
		if !ok {
			emit(model.StreamEvent{Type: model.EventError, Error: "No user message found for this session"})
			return
		}

		history := r.store.HistoryForCompletion(sessionID)
		// The trailing user message is re-sent by the responder with its
		// page context attached; keep only the turns before it.
		if n := len(history); n > 0 && history[n-1].Role == model.RoleUser && history[n-1].Content == userText {
			history = history[:n-1]
		}
		r.store.Touch(sessionID)

		var full strings.Builder
		for frag := range r.responder.Respond(ctx, userText, history, pageContext) {
			switch frag.Kind {
			case model.FragmentText:
				full.WriteString(frag.Text)
				if !emit(model.StreamEvent{Type: model.EventChunk, Content: frag.Text}) {
					return
				}
			case model.FragmentToolNotice:
				if !emit(model.StreamEvent{Type: model.EventToolNotice, ToolName: frag.ToolName}) {
					return
				}
			case model.FragmentToolResult:
				if !emit(model.StreamEvent{Type: model.EventToolResult, Content: frag.Text, ToolName: frag.ToolName}) {
					return
				}
			case model.FragmentDone:
				r.store.Append(sessionID, model.RoleAssistant, full.String(), nil)
				emit(model.StreamEvent{Type: model.EventEnd, MessageID: "msg_" + uuid.New().String()})
				return
			case model.FragmentError:
				r.logger.Warn("response failed",
					zap.String("session_id", sessionID),
					zap.String("message", frag.Text))
				emit(model.StreamEvent{Type: model.EventError, Error: frag.Text})
				return
			}
		}

		// Fragment channel closed without a terminal fragment; this happens
		// only on cancellation, where the consumer is already gone.
	}()

	return out
}
