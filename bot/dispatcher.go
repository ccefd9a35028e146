// Package bot turns classified messages into replies. It owns access
// control, conversation threading, retry, and the admin configuration
// surface.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/canisterai/gptbot/internal/idempotency"
	"github.com/canisterai/gptbot/llm"
	"github.com/canisterai/gptbot/providers/relay"
	"github.com/canisterai/gptbot/session"
	"github.com/canisterai/gptbot/state"
)

// Completer is the completion backend. relay.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, mode, payload, key string) (string, error)
}

// Metadata describes the running instance, shown by /info.
type Metadata struct {
	InstanceID   string
	TelegramLink string
	WebLink      string
	Balance      func() uint64
}

type Options struct {
	Config     *state.ConfigStore
	Allow      *state.AllowList
	Shortcuts  *state.ShortcutStore
	Sessions   *session.Store
	Client     Completer
	ImageModel string
	Meta       Metadata
	Now        func() time.Time
	Logger     *slog.Logger
	// Persist is called after every successful admin mutation.
	Persist func() error
}

type Dispatcher struct {
	config     *state.ConfigStore
	allow      *state.AllowList
	shortcuts  *state.ShortcutStore
	sessions   *session.Store
	client     Completer
	imageModel string
	meta       Metadata
	now        func() time.Time
	logger     *slog.Logger
	persist    func() error
}

func New(opts Options) *Dispatcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ImageModel == "" {
		opts.ImageModel = "dall-e-3"
	}
	return &Dispatcher{
		config:     opts.Config,
		allow:      opts.Allow,
		shortcuts:  opts.Shortcuts,
		sessions:   opts.Sessions,
		client:     opts.Client,
		imageModel: opts.ImageModel,
		meta:       opts.Meta,
		now:        opts.Now,
		logger:     opts.Logger,
		persist:    opts.Persist,
	}
}

func (d *Dispatcher) access() state.Access {
	return state.Access{Config: d.config, Allow: d.allow}
}

// Handle produces the reply for one message. Authorization is checked
// before any classification so unauthorized callers learn nothing about
// the command surface.
func (d *Dispatcher) Handle(ctx context.Context, caller, text string) string {
	if !d.access().IsAuthorized(caller) {
		d.logger.Warn("unauthorized_caller", "caller", caller)
		return replyUnauthorized
	}

	intent := ParseIntent(text)
	switch intent.Kind {
	case IntentStart:
		return greetingText
	case IntentHelp:
		return helpText
	case IntentInfo:
		return d.infoReply()
	case IntentRetry:
		return d.handleRetry(ctx, caller)
	case IntentConfig:
		return d.handleConfig(caller, intent.Arg)
	case IntentImagine:
		return d.handleImagine(ctx, caller, intent.Arg)
	case IntentShortcut:
		return d.handleShortcut(ctx, caller, intent.Name, intent.Arg)
	case IntentUnknown:
		return replyUnknownCommand
	default:
		return d.handleChat(ctx, caller, intent.Arg, intent.FollowOn)
	}
}

func (d *Dispatcher) handleChat(ctx context.Context, caller, prompt string, followOn bool) string {
	cfg := d.config.Get()

	var prior []llm.Exchange
	if followOn {
		for _, turn := range d.sessions.FollowOnChain(caller) {
			prior = append(prior, llm.Exchange{Question: turn.Question, Answer: turn.Answer})
		}
	}

	payload, err := encodePayload(llm.BuildChatRequest(cfg.Model, cfg.Prompt, prior, false, prompt))
	if err != nil {
		return fmt.Sprintf("HTTP request failed: %s", err.Error())
	}

	at := d.now()
	key := idempotency.TurnKey(string(session.KindChat), prompt, at)
	answer := d.complete(ctx, string(session.KindChat), payload, key)

	d.sessions.RecordTurn(caller, session.KindChat, at, prompt, answer, followOn)
	return answer
}

func (d *Dispatcher) handleImagine(ctx context.Context, caller, prompt string) string {
	if prompt == "" {
		return replyImagineUsage
	}

	payload, err := encodePayload(llm.BuildImageRequest(d.imageModel, prompt))
	if err != nil {
		return fmt.Sprintf("HTTP request failed: %s", err.Error())
	}

	at := d.now()
	key := idempotency.TurnKey(string(session.KindImage), prompt, at)
	answer := d.complete(ctx, string(session.KindImage), payload, key)

	d.sessions.RecordTurn(caller, session.KindImage, at, prompt, answer, false)
	return answer
}

func (d *Dispatcher) handleShortcut(ctx context.Context, caller, name, arg string) string {
	if name == "" {
		return replyUnknownShortcut
	}
	template, ok := d.shortcuts.Get(name)
	if !ok {
		return replyUnknownShortcut
	}
	// Templates carry their own trailing separator when they need one.
	return d.handleChat(ctx, caller, template+arg, false)
}

// handleRetry re-issues the retained question under its original kind.
// The recorded turn keeps the old question and follow-on flag but gets
// a fresh timestamp and answer.
func (d *Dispatcher) handleRetry(ctx context.Context, caller string) string {
	last, ok := d.sessions.LatestTurn(caller)
	if !ok {
		return replyNoPrevious
	}

	var payload string
	var err error
	if last.Kind == session.KindImage {
		payload, err = encodePayload(llm.BuildImageRequest(d.imageModel, last.Question))
	} else {
		cfg := d.config.Get()
		var prior []llm.Exchange
		for _, turn := range d.sessions.FollowOnChain(caller) {
			prior = append(prior, llm.Exchange{Question: turn.Question, Answer: turn.Answer})
		}
		payload, err = encodePayload(llm.BuildChatRequest(cfg.Model, cfg.Prompt, prior, true, ""))
	}
	if err != nil {
		return fmt.Sprintf("HTTP request failed: %s", err.Error())
	}

	at := d.now()
	key := idempotency.TurnKey(string(last.Kind), last.Question, at)
	answer := d.complete(ctx, string(last.Kind), payload, key)

	d.sessions.RecordTurn(caller, last.Kind, at, last.Question, answer, last.FollowOn)
	return answer
}

// complete performs one backend call, retrying exactly once on rate
// limiting. Failures come back as reply text so the conversation keeps
// its record.
func (d *Dispatcher) complete(ctx context.Context, mode, payload, key string) string {
	answer, err := d.client.Complete(ctx, mode, payload, key)
	if errors.Is(err, relay.ErrRateLimited) {
		d.logger.Warn("rate_limited_retry", "mode", mode)
		answer, err = d.client.Complete(ctx, mode, payload, key)
	}
	if err != nil {
		d.logger.Warn("completion_error", "mode", mode, "error", err.Error())
		return fmt.Sprintf("HTTP request failed: %s", err.Error())
	}
	return answer
}

func (d *Dispatcher) infoReply() string {
	var balance uint64
	if d.meta.Balance != nil {
		balance = d.meta.Balance()
	}
	return fmt.Sprintf(
		"Instance: %s\nTime: %d\nBalance: %d\nTelegram: %s\nWeb: %s",
		d.meta.InstanceID,
		d.now().UnixNano(),
		balance,
		d.meta.TelegramLink,
		d.meta.WebLink,
	)
}

func encodePayload(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
