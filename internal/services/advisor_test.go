package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"financify/internal/core"
	"financify/internal/oracle/memory"
)

func sampleLedger(t *testing.T) core.Ledger {
	t.Helper()
	l, err := core.NewLedger().WithExpenses([]core.ExpenseEntry{
		{Category: "Rent", Amount: core.MustAmount("15000")},
		{Category: "Food", Amount: core.MustAmount("5000.5")},
	}).WithIncome(core.MustAmount("50000"))
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	return l
}

func TestRenderLedger(t *testing.T) {
	got := RenderLedger(sampleLedger(t))
	want := "Income: 50000\nExpenses: Rent: 15000, Food: 5000.5"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got := RenderLedger(core.NewLedger()); got != "Income: 0\nExpenses: " {
		t.Fatalf("unexpected empty rendering %q", got)
	}
}

func TestBuildAdvisorPrompt(t *testing.T) {
	p := BuildAdvisorPrompt(nil, sampleLedger(t), "  Can I buy a car?  ")
	for _, want := range []string{
		"named 'Financify,'",
		"Rule of 72",
		"**Disclaimer:** " + Disclaimer,
		"User's financial data:\nIncome: 50000",
		"User's Question: Can I buy a car?",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(p, "Conversation so far") {
		t.Error("history block should be absent without history")
	}
	if !strings.HasSuffix(p, "Can I buy a car?") {
		t.Error("question should come last")
	}
}

func TestAskSendsOnlyLatestTurnByDefault(t *testing.T) {
	o := memory.New().ScriptText("first answer", "second answer")
	svc := NewAdvisorService(o, WithAdvisorTimeout(time.Second))
	tr := core.NewTranscript("Asha")

	tr, turn, err := svc.Ask(context.Background(), tr, sampleLedger(t), "How much should I save?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turn.Role != core.RoleAssistant || turn.Text != "first answer" || turn.Error {
		t.Fatalf("unexpected turn %+v", turn)
	}
	tr, _, _ = svc.Ask(context.Background(), tr, sampleLedger(t), "And invest?")

	if tr.Len() != 5 {
		t.Fatalf("expected greeting + 2 exchanges, got %d turns", tr.Len())
	}
	calls := o.TextCalls()
	if strings.Contains(calls[1].Prompt, "How much should I save?") {
		t.Error("earlier turns must not be sent by default")
	}
}

func TestAskWithHistory(t *testing.T) {
	o := memory.New().ScriptText("answer one", "answer two")
	svc := NewAdvisorService(o, WithHistory(true))
	tr := core.NewTranscript("Asha")

	tr, _, _ = svc.Ask(context.Background(), tr, sampleLedger(t), "first question")
	_, _, _ = svc.Ask(context.Background(), tr, sampleLedger(t), "second question")

	p := o.TextCalls()[1].Prompt
	for _, want := range []string{"Conversation so far:", "User: first question", "Advisor: answer one"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestAskConvertsOracleFailure(t *testing.T) {
	o := memory.New().FailText(errors.New("network down"))
	svc := NewAdvisorService(o)
	tr := core.NewTranscript("Asha")

	next, turn, err := svc.Ask(context.Background(), tr, sampleLedger(t), "hello?")
	if err != nil {
		t.Fatalf("oracle failures must not be returned as errors, got %v", err)
	}
	if !turn.Error || !strings.HasPrefix(turn.Text, "An error occurred: ") || !strings.Contains(turn.Text, "network down") {
		t.Fatalf("unexpected error turn %+v", turn)
	}
	if next.Len() != 3 {
		t.Fatalf("expected question and error turn appended, got %d", next.Len())
	}
	if tr.Len() != 1 {
		t.Fatal("input transcript must not change")
	}
}

func TestAskRejectsBlankQuestion(t *testing.T) {
	o := memory.New()
	tr := core.NewTranscript("Asha")
	got, _, err := NewAdvisorService(o).Ask(context.Background(), tr, core.NewLedger(), "   ")
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got.Len() != tr.Len() || len(o.TextCalls()) != 0 {
		t.Fatal("blank question must not touch transcript or oracle")
	}
}

type slowGenerator struct{}

func (slowGenerator) GenerateText(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", &core.OracleError{Op: "generate_text", Kind: core.OracleTimeout, Err: ctx.Err()}
}

func TestAskTimeout(t *testing.T) {
	svc := NewAdvisorService(slowGenerator{}, WithAdvisorTimeout(20*time.Millisecond))
	_, turn, err := svc.Ask(context.Background(), core.NewTranscript(""), core.NewLedger(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !turn.Error || !strings.Contains(turn.Text, "too long") {
		t.Fatalf("expected timeout turn, got %+v", turn)
	}
}

func TestOracleMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&core.OracleError{Kind: core.OracleCredentials, Err: errors.New("x")}, "API key"},
		{&core.OracleError{Kind: core.OracleAuth, Err: errors.New("x")}, "rejected"},
		{&core.OracleError{Kind: core.OracleQuota, Err: errors.New("x")}, "quota"},
		{&core.OracleError{Kind: core.OracleOther, Err: errors.New("weird")}, "weird"},
		{errors.New("plain"), "plain"},
	}
	for _, tt := range tests {
		if got := OracleMessage(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("OracleMessage(%v) = %q, want it to contain %q", tt.err, got, tt.want)
		}
	}
	if OracleMessage(nil) != "" {
		t.Error("nil error should render empty")
	}
}
