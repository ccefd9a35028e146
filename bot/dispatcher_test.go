package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/canisterai/gptbot/llm"
	"github.com/canisterai/gptbot/providers/relay"
	"github.com/canisterai/gptbot/session"
	"github.com/canisterai/gptbot/state"
)

type recordedCall struct {
	Mode    string
	Payload string
	Key     string
}

// fakeCompleter scripts backend replies and records every call.
type fakeCompleter struct {
	calls   []recordedCall
	replies []string
	errs    []error
}

func (f *fakeCompleter) Complete(_ context.Context, mode, payload, key string) (string, error) {
	f.calls = append(f.calls, recordedCall{Mode: mode, Payload: payload, Key: key})
	i := len(f.calls) - 1
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	reply := "ok"
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

type fixture struct {
	d     *Dispatcher
	fake  *fakeCompleter
	clock *time.Time
}

func newFixture(t *testing.T, cfg state.Config, allowed ...string) *fixture {
	t.Helper()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	tick := func() time.Time {
		*clock = clock.Add(time.Second)
		return *clock
	}
	fake := &fakeCompleter{}
	d := New(Options{
		Config:    state.NewConfigStore(cfg),
		Allow:     state.NewAllowList(allowed...),
		Shortcuts: state.NewShortcutStore(),
		Sessions:  session.NewStore(session.DefaultRetention, tick),
		Client:    fake,
		Now:       tick,
		Meta: Metadata{
			InstanceID:   "abc-123",
			TelegramLink: "https://t.me/demo_bot",
			WebLink:      "https://example.com",
			Balance:      func() uint64 { return 987 },
		},
	})
	return &fixture{d: d, fake: fake, clock: clock}
}

func decodeChatPayload(t *testing.T, payload string) llm.Request {
	t.Helper()
	var req llm.Request
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		t.Fatalf("payload %q: %v", payload, err)
	}
	return req
}

func TestHandleUnauthorized(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, state.Config{Model: "m"}, "alice")
	if got := fx.d.Handle(context.Background(), "mallory", "hi"); got != replyUnauthorized {
		t.Fatalf("Handle() = %q, want %q", got, replyUnauthorized)
	}
	if len(fx.fake.calls) != 0 {
		t.Fatalf("backend called %d times for unauthorized caller", len(fx.fake.calls))
	}
}

func TestHandleChatFreshConversation(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, state.Config{Model: "gpt-4o-mini", Prompt: "be brief"})
	fx.fake.replies = []string{"Paris."}

	got := fx.d.Handle(context.Background(), "alice", "capital of France?")
	if got != "Paris." {
		t.Fatalf("Handle() = %q", got)
	}

	call := fx.fake.calls[0]
	if call.Mode != "chat" {
		t.Fatalf("mode = %q, want chat", call.Mode)
	}
	req := decodeChatPayload(t, call.Payload)
	if req.Model != "gpt-4o-mini" {
		t.Fatalf("model = %q", req.Model)
	}
	want := []llm.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "capital of France?"},
	}
	if len(req.Messages) != len(want) {
		t.Fatalf("messages = %+v", req.Messages)
	}
	for i := range want {
		if req.Messages[i] != want[i] {
			t.Fatalf("messages[%d] = %+v, want %+v", i, req.Messages[i], want[i])
		}
	}
	if !strings.HasPrefix(call.Key, "chat:capital of France?:") {
		t.Fatalf("key = %q", call.Key)
	}
}

func TestHandleChatFollowOnCarriesHistory(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, state.Config{Model: "m", Prompt: "p"})
	fx.fake.replies = []string{"Paris.", "About 2 million."}

	fx.d.Handle(context.Background(), "alice", "capital of France?")
	fx.d.Handle(context.Background(), "alice", "+population?")

	req := decodeChatPayload(t, fx.fake.calls[1].Payload)
	roles := make([]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		roles = append(roles, m.Role)
	}
	if got, want := strings.Join(roles, ","), "system,user,assistant,user"; got != want {
		t.Fatalf("roles = %s, want %s", got, want)
	}
	if req.Messages[2].Content != "Paris." {
		t.Fatalf("history answer = %q", req.Messages[2].Content)
	}
	if req.Messages[3].Content != "population?" {
		t.Fatalf("final prompt = %q", req.Messages[3].Content)
	}
}

func TestHandleChatPlainTextResetsContext(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, state.Config{Model: "m", Prompt: "p"})
	fx.fake.replies = []string{"a1", "a2", "a3"}

	fx.d.Handle(context.Background(), "alice", "q1")
	fx.d.Handle(context.Background(), "alice", "+q2")
	fx.d.Handle(context.Background(), "alice", "q3")

	// The third question starts over, so only it is in the payload.
	req := decodeChatPayload(t, fx.fake.calls[2].Payload)
	if len(req.Messages) != 2 || req.Messages[1].Content != "q3" {
		t.Fatalf("messages = %+v", req.Messages)
	}
}

func TestHandleRetryChat(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, state.Config{Model: "m", Prompt: "p"})
	fx.fake.replies = []string{"first answer", "better answer"}

	fx.d.Handle(context.Background(), "alice", "why is the sky blue?")
	got := fx.d.Handle(context.Background(), "alice", "/retry")
	if got != "better answer" {
		t.Fatalf("Handle(/retry) = %q", got)
	}

	req := decodeChatPayload(t, fx.fake.calls[1].Payload)
	// Retry drops the rejected answer and repeats the question.
	want := []llm.Message{
		{Role: "system", Content: "p"},
		{Role: "user", Content: "why is the sky blue?"},
	}
	if len(req.Messages) != len(want) || req.Messages[1] != want[1] {
		t.Fatalf("messages = %+v", req.Messages)
	}
	if !strings.HasPrefix(fx.fake.calls[1].Key, "chat:why is the sky blue?:") {
		t.Fatalf("key = %q", fx.fake.calls[1].Key)
	}
	if fx.fake.calls[1].Key == fx.fake.calls[0].Key {
		t.Fatalf("retry reused the original idempotency key")
	}
}

func TestHandleRetryImage(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, state.Config{Model: "m"})
	fx.fake.replies = []string{"https://img/1", "https://img/2"}

	fx.d.Handle(context.Background(), "alice", "/imagine a red fox")
	got := fx.d.Handle(context.Background(), "alice", "/retry")
	if got != "https://img/2" {
		t.Fatalf("Handle(/retry) = %q", got)
	}

	call := fx.fake.calls[1]
	if call.Mode != "image" {
		t.Fatalf("mode = %q, want image", call.Mode)
	}
	var req llm.ImageRequest
	if err := json.Unmarshal([]byte(call.Payload), &req); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if req.Prompt != "a red fox" {
		t.Fatalf("prompt = %q", req.Prompt)
	}
}

func TestHandleRetryNoHistory(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, state.Config{Model: "m"})
	if got := fx.d.Handle(context.Background(), "alice", "/retry"); got != replyNoPrevious {
		t.Fatalf("Handle(/retry) = %q, want %q", got, replyNoPrevious)
	}
}

func TestHandleRateLimitedRetriesOnce(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, state.Config{Model: "m"})
	fx.fake.errs = []error{fmt.Errorf("%w: http 429", relay.ErrRateLimited)}
	fx.fake.replies = []string{"", "recovered"}

	if got := fx.d.Handle(context.Background(), "alice", "hello"); got != "recovered" {
		t.Fatalf("Handle() = %q", got)
	}
	if len(fx.fake.calls) != 2 {
		t.Fatalf("backend called %d times, want 2", len(fx.fake.calls))
	}
	if fx.fake.calls[0].Key != fx.fake.calls[1].Key {
		t.Fatalf("rate-limit retry must reuse the idempotency key")
	}
}

func TestHandleRateLimitedTwiceGivesUp(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, state.Config{Model: "m"})
	rateErr := fmt.Errorf("%w: http 429", relay.ErrRateLimited)
	fx.fake.errs = []error{rateErr, rateErr}

	got := fx.d.Handle(context.Background(), "alice", "hello")
	if !strings.HasPrefix(got, "HTTP request failed: ") {
		t.Fatalf("Handle() = %q", got)
	}
	if len(fx.fake.calls) != 2 {
		t.Fatalf("backend called %d times, want 2", len(fx.fake.calls))
	}
}

func TestHandleBackendErrorRecordedAsAnswer(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, state.Config{Model: "m", Prompt: "p"})
	fx.fake.errs = []error{fmt.Errorf("relay chat: http 502: boom")}
	fx.fake.replies = []string{"", "a2"}

	got := fx.d.Handle(context.Background(), "alice", "q1")
	if got != "HTTP request failed: relay chat: http 502: boom" {
		t.Fatalf("Handle() = %q", got)
	}

	// The failed turn still threads: the follow-up sees it as history.
	fx.d.Handle(context.Background(), "alice", "+q2")
	req := decodeChatPayload(t, fx.fake.calls[1].Payload)
	if req.Messages[2].Content != "HTTP request failed: relay chat: http 502: boom" {
		t.Fatalf("history answer = %q", req.Messages[2].Content)
	}
}

func TestHandleImagine(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, state.Config{Model: "m"})
	fx.fake.replies = []string{"https://img/fox"}

	got := fx.d.Handle(context.Background(), "alice", "/imagine a red fox")
	if got != "https://img/fox" {
		t.Fatalf("Handle() = %q", got)
	}
	call := fx.fake.calls[0]
	if call.Mode != "image" {
		t.Fatalf("mode = %q", call.Mode)
	}
	var req llm.ImageRequest
	if err := json.Unmarshal([]byte(call.Payload), &req); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if req.Model != "dall-e-3" || req.Prompt != "a red fox" {
		t.Fatalf("request = %+v", req)
	}
}

func TestHandleImagineWithoutPrompt(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, state.Config{Model: "m"})
	if got := fx.d.Handle(context.Background(), "alice", "/imagine"); got != replyImagineUsage {
		t.Fatalf("Handle() = %q, want usage", got)
	}
}

func TestHandleShortcut(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, state.Config{Model: "m", Prompt: "p"})
	fx.d.shortcuts.Set("tr", "Translate to French: ")
	fx.fake.replies = []string{"bonjour"}

	got := fx.d.Handle(context.Background(), "alice", "!tr hello")
	if got != "bonjour" {
		t.Fatalf("Handle() = %q", got)
	}
	req := decodeChatPayload(t, fx.fake.calls[0].Payload)
	if req.Messages[1].Content != "Translate to French: hello" {
		t.Fatalf("prompt = %q", req.Messages[1].Content)
	}
}

func TestHandleUnknownShortcut(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, state.Config{Model: "m"})
	if got := fx.d.Handle(context.Background(), "alice", "!nope hi"); got != replyUnknownShortcut {
		t.Fatalf("Handle() = %q, want %q", got, replyUnknownShortcut)
	}
}

func TestHandleUnknownCommand(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, state.Config{Model: "m"})
	if got := fx.d.Handle(context.Background(), "alice", "/weather"); got != replyUnknownCommand {
		t.Fatalf("Handle() = %q, want %q", got, replyUnknownCommand)
	}
}

func TestHandleInfo(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, state.Config{Model: "m"})
	got := fx.d.Handle(context.Background(), "alice", "/info")
	for _, want := range []string{"abc-123", "987", "https://t.me/demo_bot", "https://example.com"} {
		if !strings.Contains(got, want) {
			t.Fatalf("Handle(/info) = %q, missing %q", got, want)
		}
	}
}

func TestHandleStartAndHelp(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, state.Config{Model: "m"})
	if got := fx.d.Handle(context.Background(), "alice", "/start"); got != greetingText {
		t.Fatalf("Handle(/start) = %q", got)
	}
	if got := fx.d.Handle(context.Background(), "alice", "/help"); got != helpText {
		t.Fatalf("Handle(/help) = %q", got)
	}
}
