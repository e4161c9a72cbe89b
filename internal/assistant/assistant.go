// Package assistant runs structured extraction prompts against the language model.
// One agent is kept per result shape and reused across calls.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/JaimeStill/postmottak/internal/results"
	"github.com/JaimeStill/postmottak/pkg/formatting"
)

const instructions = `Du jobber med arkivering og uthenting av relevante data fra en epost.
Du responderer alltid i json format.

Dersom du ikke finner en sannsynlig verdi for en property, setter du den til null`

const funFactPrompt = "Gi meg en fun fact"

// ErrChatFailed wraps transport failures from the model provider.
var ErrChatFailed = errors.New("agent chat failed")

// Turn is one entry of a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History is the conversation of one Ask call.
type History []Turn

// Last returns the content of the final turn.
func (h History) Last() string {
	if len(h) == 0 {
		return ""
	}
	return h[len(h)-1].Content
}

// Requester sends one prompt to the agent for kind and returns the conversation.
type Requester interface {
	Chat(ctx context.Context, kind results.Kind, prompt string) (History, error)
}

// Assistant is the go-agents backed Requester.
type Assistant struct {
	cfg    gaconfig.AgentConfig
	logger *slog.Logger

	mu     sync.Mutex
	agents map[results.Kind]agent.Agent
}

func New(cfg gaconfig.AgentConfig, logger *slog.Logger) *Assistant {
	return &Assistant{
		cfg:    cfg,
		logger: logger.With("system", "assistant"),
		agents: make(map[results.Kind]agent.Agent),
	}
}

func (a *Assistant) Chat(ctx context.Context, kind results.Kind, prompt string) (History, error) {
	ag, err := a.agent(kind)
	if err != nil {
		return nil, err
	}

	shape, err := results.Decode(kind, nil)
	if err != nil {
		return nil, err
	}

	full := fmt.Sprintf("%s\n\nSvar med et json-objekt med følgende properties:\n%s\n\n%s", instructions, shape.Schema(), prompt)

	resp, err := ag.Chat(ctx, full)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrChatFailed, kind, err)
	}

	a.logger.DebugContext(ctx, "agent responded", "kind", kind)

	return History{
		{Role: "user", Content: prompt},
		{Role: "assistant", Content: resp.Content()},
	}, nil
}

func (a *Assistant) agent(kind results.Kind) (agent.Agent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ag, ok := a.agents[kind]; ok {
		return ag, nil
	}

	cfg := a.cfg
	cfg.Name = fmt.Sprintf("%s-%s", a.cfg.Name, kind)

	ag, err := agent.New(&cfg)
	if err != nil {
		return nil, fmt.Errorf("create agent %s: %w", kind, err)
	}
	a.agents[kind] = ag
	return ag, nil
}

// Ask prompts the agent for T. A reply that does not parse as T yields a nil
// result and no error: the extraction is inconclusive, not failed.
func Ask[T results.Shape](ctx context.Context, r Requester, prompt string) (History, *T, error) {
	var zero T
	history, err := r.Chat(ctx, zero.Kind(), prompt)
	if err != nil {
		return nil, nil, err
	}

	parsed, err := formatting.Parse[T](history.Last())
	if err != nil {
		return history, nil, nil
	}
	return history, &parsed, nil
}

// AskKind is Ask for a kind chosen at runtime. The returned shape is nil when
// the reply did not parse.
func AskKind(ctx context.Context, r Requester, kind results.Kind, prompt string) (History, results.Shape, error) {
	switch kind {
	case results.KindRf1350:
		return askShape[results.Rf1350](ctx, r, prompt)
	case results.KindLoyvegaranti:
		return askShape[results.Loyvegaranti](ctx, r, prompt)
	case results.KindPengetransporten:
		return askShape[results.Pengetransporten](ctx, r, prompt)
	case results.KindInnsyn:
		return askShape[results.Innsyn](ctx, r, prompt)
	case results.KindGeneral:
		return askShape[results.General](ctx, r, prompt)
	case results.KindFunFact:
		return askShape[results.FunFact](ctx, r, prompt)
	default:
		return nil, nil, fmt.Errorf("%w: %q", results.ErrUnknownKind, kind)
	}
}

func askShape[T results.Shape](ctx context.Context, r Requester, prompt string) (History, results.Shape, error) {
	history, v, err := Ask[T](ctx, r, prompt)
	if err != nil || v == nil {
		return history, nil, err
	}
	return history, *v, nil
}

// FunFact returns a short remark about archiving, or an empty string when the
// agent gave nothing usable.
func FunFact(ctx context.Context, r Requester) (string, error) {
	_, v, err := Ask[results.FunFact](ctx, r, funFactPrompt)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return v.Message, nil
}
