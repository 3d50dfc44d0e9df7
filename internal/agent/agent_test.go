package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	xerrors "ChainPilot/internal/errors"
	"ChainPilot/internal/resolver"
	"ChainPilot/internal/session"
)

type stubResolver struct {
	decisions []*resolver.Decision
	err       error
	calls     int
	seen      [][]resolver.Message
}

func (s *stubResolver) Resolve(_ context.Context, conversation []resolver.Message, _ []resolver.Capability) (*resolver.Decision, error) {
	s.calls++
	copied := make([]resolver.Message, len(conversation))
	copy(copied, conversation)
	s.seen = append(s.seen, copied)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.decisions) == 0 {
		return &resolver.Decision{Answer: "完成"}, nil
	}
	decision := s.decisions[0]
	s.decisions = s.decisions[1:]
	return decision, nil
}

type stubOps struct {
	results   []string
	dispatched []resolver.ToolCall
}

func (s *stubOps) Capabilities() []resolver.Capability {
	return []resolver.Capability{{Name: "get_balance", InputSchema: json.RawMessage(`{}`)}}
}

func (s *stubOps) Dispatch(_ context.Context, _ *session.Session, _ string, call resolver.ToolCall) string {
	s.dispatched = append(s.dispatched, call)
	if len(s.results) == 0 {
		return "操作完成"
	}
	result := s.results[0]
	s.results = s.results[1:]
	return result
}

func callDecision(name string) *resolver.Decision {
	return &resolver.Decision{Call: &resolver.ToolCall{ID: "call-" + name, Name: name, Arguments: json.RawMessage(`{}`)}}
}

func TestRunTerminalAnswer(t *testing.T) {
	res := &stubResolver{decisions: []*resolver.Decision{{Answer: "你的余额是 3 ETH"}}}
	ag := New(res, &stubOps{})

	answer, err := ag.Run(context.Background(), session.New(), Request{Input: "查余额"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "你的余额是 3 ETH" {
		t.Fatalf("unexpected answer: %q", answer)
	}
	if res.calls != 1 {
		t.Fatalf("expected 1 resolver call, got %d", res.calls)
	}
}

func TestRunFeedsResultBack(t *testing.T) {
	res := &stubResolver{decisions: []*resolver.Decision{
		callDecision("get_balance"),
		{Answer: "余额查好了"},
	}}
	ops := &stubOps{results: []string{"地址余额为 3 ETH"}}
	ag := New(res, ops)

	answer, err := ag.Run(context.Background(), session.New(), Request{Input: "查余额"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "余额查好了" {
		t.Fatalf("unexpected answer: %q", answer)
	}
	if len(ops.dispatched) != 1 || ops.dispatched[0].Name != "get_balance" {
		t.Fatalf("expected one get_balance dispatch, got %+v", ops.dispatched)
	}

	// 第二次解析调用必须能看到操作结果。
	final := res.seen[len(res.seen)-1]
	found := false
	for _, msg := range final {
		if msg.Role == resolver.RoleTool && strings.Contains(msg.Content, "3 ETH") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the operation result in the follow-up conversation")
	}
}

func TestRunTerminatesAtMaxTurns(t *testing.T) {
	decisions := make([]*resolver.Decision, 0, 32)
	for i := 0; i < 32; i++ {
		decisions = append(decisions, callDecision("get_balance"))
	}
	res := &stubResolver{decisions: decisions}
	ops := &stubOps{}
	ag := New(res, ops, WithMaxTurns(5))

	answer, err := ag.Run(context.Background(), session.New(), Request{Input: "停不下来"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(answer, "拆小") {
		t.Fatalf("expected budget-exhausted notice, got %q", answer)
	}
	if res.calls != 5 {
		t.Fatalf("expected exactly 5 resolver calls, got %d", res.calls)
	}
	if len(ops.dispatched) != 5 {
		t.Fatalf("expected 5 dispatches, got %d", len(ops.dispatched))
	}
}

func TestRunResolverFailure(t *testing.T) {
	res := &stubResolver{err: errors.New("upstream 503")}
	ag := New(res, &stubOps{})

	_, err := ag.Run(context.Background(), session.New(), Request{Input: "查余额"})
	if err == nil {
		t.Fatal("expected resolver failure to propagate")
	}
	if xerrors.CodeOf(err) != xerrors.CodeResolverFailure {
		t.Fatalf("expected RESOLVER_FAILURE, got %s", xerrors.CodeOf(err))
	}
}

func TestRunRejectsBlankInput(t *testing.T) {
	ag := New(&stubResolver{}, &stubOps{})
	_, err := ag.Run(context.Background(), session.New(), Request{Input: "   "})
	if err == nil {
		t.Fatal("expected blank input to be rejected")
	}
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %s", xerrors.CodeOf(err))
	}
}

func TestRunSeedsCredentialTurn(t *testing.T) {
	res := &stubResolver{decisions: []*resolver.Decision{{Answer: "已连接"}}}
	ops := &stubOps{results: []string{"钱包连接成功"}}
	ag := New(res, ops)

	_, err := ag.Run(context.Background(), session.New(), Request{Input: "连接钱包", Credential: "ac09"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ops.dispatched) != 1 || ops.dispatched[0].Name != "connect_wallet" {
		t.Fatalf("expected a seeded connect_wallet dispatch, got %+v", ops.dispatched)
	}

	conversation := res.seen[0]
	found := false
	for _, msg := range conversation {
		if msg.Role == resolver.RoleTool && strings.Contains(msg.Content, "连接成功") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the seeded connect result in the conversation")
	}
}
