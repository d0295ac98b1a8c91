// Package chat turns completion-backend streams into the fragment and event
// sequences the HTTP layer serves. The adapter owns the agentic tool loop;
// the relay owns session persistence and the SSE event framing contract.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"atlasd/model"
)

// DefaultMaxToolRounds bounds how many completion rounds a single response
// may spend resolving tool calls before the loop is cut off.
const DefaultMaxToolRounds = 5

// Dispatcher resolves namespaced tool calls. Invoke returns a readable
// result string; a non-nil error means the call could not be routed at all
// (unknown tool) and the response must terminate.
type Dispatcher interface {
	Tools() []mcptypes.Tool
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

// Adapter drives one completion backend and emits a lazy, single-pass
// fragment sequence per response.
type Adapter struct {
	provider          model.Provider
	dispatcher        Dispatcher
	systemPrompt      string
	maxToolRounds     int
	completionTimeout time.Duration
	logger            *zap.Logger
}

// NewAdapter wires a completion provider to a tool dispatcher. dispatcher may
// be nil, in which case responses run without tools. completionTimeout bounds
// the whole response including tool rounds; zero disables it.
func NewAdapter(provider model.Provider, dispatcher Dispatcher, systemPrompt string, maxToolRounds int, completionTimeout time.Duration, logger *zap.Logger) *Adapter {
	if maxToolRounds <= 0 {
		maxToolRounds = DefaultMaxToolRounds
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		provider:          provider,
		dispatcher:        dispatcher,
		systemPrompt:      systemPrompt,
		maxToolRounds:     maxToolRounds,
		completionTimeout: completionTimeout,
		logger:            logger,
	}
}

// Respond generates a reply to userText given prior history and the page
// context attached to the message. The returned channel yields fragments in
// emission order and is closed after exactly one terminal fragment
// (FragmentDone or FragmentError). Cancelling ctx stops generation; the
// channel is closed without a terminal fragment in that case.
func (a *Adapter) Respond(ctx context.Context, userText string, history []model.Message, pageContext map[string]any) <-chan model.Fragment {
	out := make(chan model.Fragment)

	go func() {
		defer close(out)

		// Backend calls run under the completion deadline; fragment delivery
		// uses the caller's context so a timed-out response still surfaces
		// as an error fragment to a live consumer.
		callCtx := ctx
		if a.completionTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, a.completionTimeout)
			defer cancel()
		}

		emit := func(f model.Fragment) bool {
			select {
			case out <- f:
				return true
			case <-ctx.Done():
				return false
			}
		}

		messages := make([]model.Message, 0, len(history)+2)
		if a.systemPrompt != "" {
			messages = append(messages, model.Message{Role: model.RoleSystem, Content: a.systemPrompt})
		}
		messages = append(messages, history...)
		messages = append(messages, model.Message{
			Role:    model.RoleUser,
			Content: userText + FormatContext(pageContext),
		})

		var tools []mcptypes.Tool
		if a.dispatcher != nil {
			tools = a.dispatcher.Tools()
		}

		var full strings.Builder
		for round := 0; round < a.maxToolRounds; round++ {
			var roundText strings.Builder
			var calls []model.ToolCall

			callback := func(chunk string, toolCalls []model.ToolCall) error {
				if chunk != "" {
					roundText.WriteString(chunk)
					full.WriteString(chunk)
					if !emit(model.Fragment{Kind: model.FragmentText, Text: chunk}) {
						return ctx.Err()
					}
				}
				calls = append(calls, toolCalls...)
				return nil
			}

			var err error
			if len(tools) > 0 {
				err = a.provider.ChatWithTools(callCtx, messages, tools, callback)
			} else {
				err = a.provider.Chat(callCtx, messages, callback)
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				a.logger.Warn("completion stream failed",
					zap.String("model", a.provider.GetModel()),
					zap.Int("round", round),
					zap.Error(err))
				emit(model.Fragment{
					Kind: model.FragmentError,
					Text: fmt.Sprintf("I apologize, but I encountered an error: %v", err),
				})
				return
			}

			if len(calls) == 0 {
				emit(model.Fragment{Kind: model.FragmentDone, Text: full.String()})
				return
			}

			results := make([]model.ToolResult, 0, len(calls))
			for _, call := range calls {
				// Resolve before announcing: a call the dispatcher cannot
				// route terminates with an error and no notice.
				resultText, invErr := a.dispatcher.Invoke(callCtx, call.Name, call.Arguments)
				if invErr != nil {
					if ctx.Err() != nil {
						return
					}
					a.logger.Warn("tool invocation rejected",
						zap.String("tool", call.Name),
						zap.Error(invErr))
					emit(model.Fragment{
						Kind: model.FragmentError,
						Text: fmt.Sprintf("I apologize, but I encountered an error: tool %s is not available", call.Name),
					})
					return
				}

				if !emit(model.Fragment{Kind: model.FragmentToolNotice, ToolName: call.Name}) {
					return
				}
				if !emit(model.Fragment{Kind: model.FragmentToolResult, Text: resultText, ToolName: call.Name}) {
					return
				}
				results = append(results, model.ToolResult{
					CallID:  call.ID,
					Name:    call.Name,
					Content: resultText,
				})
			}

			// Feed the exchange back so the next round can use the results.
			messages = append(messages,
				model.Message{Role: model.RoleAssistant, Content: roundText.String(), ToolCalls: calls},
				model.Message{Role: model.RoleUser, ToolResults: results},
			)
		}

		// Round budget exhausted; finish with whatever text accumulated.
		a.logger.Warn("tool round limit reached", zap.Int("rounds", a.maxToolRounds))
		emit(model.Fragment{Kind: model.FragmentDone, Text: full.String()})
	}()

	return out
}
