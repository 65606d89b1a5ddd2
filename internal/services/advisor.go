package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"financify/internal/core"
	"financify/internal/oracle"
)

// KnowledgeBase is the guideline list embedded in advisor and insights prompts.
const KnowledgeBase = `**RBI Financial Planning Guidelines:**
- The first and most important step in financial planning is to know your money well (income, expenses, assets, liabilities).
- The three key components of money management are Record Keeping, Budgeting, and Saving.
- A budget is a plan you commit to follow to prudently manage your money.
- Saving is putting aside money for future use; it should be done first and regularly.
- Common financial mistakes include spending frivolously, mindless use of credit cards, and investing based on half-knowledge.
- Good credit is a lifelong asset built by paying back debts on time and in full.
- The 'Rule of 72' is a simple trick to find out how long it will take to double your money.
- Investment decisions should be based on your risk profile, needs, and priorities, not on what a friend does.
- You should not invest money that is not yours and investable.
- An emergency fund should cover at least three months of living expenses.
- Insurance is a way to transfer risk and provide peace of mind in case of disasters.`

// Disclaimer closes every advisor answer.
const Disclaimer = "This advice is for educational purposes only and is not a substitute for professional financial consultation."

// AdvisorPersona is the fixed instruction block that starts every advisor prompt.
var AdvisorPersona = `You are a conversational AI financial advisor named 'Financify,' which means 'Easy Wealth Companion.' Your persona is that of a friendly, knowledgeable, and trustworthy financial expert for young professionals in India. Your goal is to provide simple, actionable, and culturally relevant financial guidance. You are an expert in personal finance, and your advice is based on the following key guidelines:
` + KnowledgeBase + `

Your tasks are:
1.  **Analyze User Data:** You will be provided with a user's monthly financial data in text format.
2.  **Provide a Budget Summary:** Give a clear, concise summary of their financial status, including total income, total expenses, and the remaining balance.
3.  **Give Actionable Advice:** Offer 2-3 specific, practical suggestions to improve their financial health. The advice must be based on the provided RBI guidelines.
4.  **Maintain a Trustworthy Tone:** The response must be polite, easy to read, and free of complex jargon. Always include a disclaimer at the end.
5.  **Roleplay:** If the user asks about a big purchase, respond as an advisor helping them analyze the decision based on their provided data, referencing your knowledge base.

**Disclaimer:** ` + Disclaimer

// RenderLedger formats a ledger the way it is shown to the advisor:
//
//	Income: 50000
//	Expenses: Rent: 15000, Food: 5000
func RenderLedger(l core.Ledger) string {
	parts := make([]string, len(l.Expenses))
	for i, e := range l.Expenses {
		parts[i] = fmt.Sprintf("%s: %s", e.Category, e.Amount.String())
	}
	return fmt.Sprintf("Income: %s\nExpenses: %s", l.Income.String(), strings.Join(parts, ", "))
}

// BuildAdvisorPrompt assembles one advisor request. history is only used
// when non-empty; failed assistant turns are left out of it.
func BuildAdvisorPrompt(history []core.Turn, l core.Ledger, question string) string {
	var b strings.Builder
	b.WriteString(AdvisorPersona)
	b.WriteString("\n\nUser's financial data:\n")
	b.WriteString(RenderLedger(l))

	if conv := renderHistory(history); conv != "" {
		b.WriteString("\n\nConversation so far:\n")
		b.WriteString(conv)
	}

	b.WriteString("\n\nUser's Question: ")
	b.WriteString(strings.TrimSpace(question))
	return b.String()
}

func renderHistory(turns []core.Turn) string {
	var lines []string
	for _, t := range turns {
		if t.Error {
			continue
		}
		who := "User"
		if t.Role == core.RoleAssistant {
			who = "Advisor"
		}
		lines = append(lines, who+": "+strings.TrimSpace(t.Text))
	}
	return strings.Join(lines, "\n")
}

// AdvisorService forwards questions and the ledger snapshot to the oracle.
type AdvisorService struct {
	text        oracle.TextGenerator
	timeout     time.Duration
	sendHistory bool
	now         func() time.Time
}

type AdvisorOption func(*AdvisorService)

// WithHistory makes Ask include the earlier conversation in the prompt.
func WithHistory(enabled bool) AdvisorOption {
	return func(s *AdvisorService) { s.sendHistory = enabled }
}

// WithAdvisorTimeout bounds each oracle call.
func WithAdvisorTimeout(d time.Duration) AdvisorOption {
	return func(s *AdvisorService) { s.timeout = d }
}

func NewAdvisorService(text oracle.TextGenerator, opts ...AdvisorOption) *AdvisorService {
	s := &AdvisorService{text: text, timeout: 45 * time.Second, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ask appends the question and the advisor's answer to tr. Oracle failures
// are turned into an assistant turn marked as Error, so the returned error
// is only set for invalid input, in which case tr is returned unchanged.
func (s *AdvisorService) Ask(ctx context.Context, tr core.Transcript, l core.Ledger, question string) (core.Transcript, core.Turn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return tr, core.Turn{}, core.Invalid("question", errors.New("question is required"))
	}

	var history []core.Turn
	if s.sendHistory {
		history = tr.Turns()
	}
	tr = tr.Append(core.Turn{Role: core.RoleUser, Text: question, At: s.now()})

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := s.text.GenerateText(callCtx, BuildAdvisorPrompt(history, l, question))
	turn := core.Turn{Role: core.RoleAssistant, Text: strings.TrimSpace(answer), At: s.now()}
	if err != nil {
		slog.WarnContext(ctx, "Advisor request failed", "error", err, "duration", time.Since(start))
		turn.Text = "An error occurred: " + OracleMessage(err)
		turn.Error = true
	} else {
		slog.InfoContext(ctx, "Advisor answered", "duration", time.Since(start), "chars", len(turn.Text), "with_history", s.sendHistory)
	}
	return tr.Append(turn), turn, nil
}

// OracleMessage renders an oracle failure for the user.
func OracleMessage(err error) string {
	if err == nil {
		return ""
	}
	var oerr *core.OracleError
	if errors.As(err, &oerr) {
		switch oerr.Kind {
		case core.OracleCredentials:
			return "no Gemini API key is configured. Add one in Settings to use AI features."
		case core.OracleAuth:
			return "the API key was rejected. Please check and re-enter it."
		case core.OracleQuota:
			return "the AI service quota is exhausted. Please try again later."
		case core.OracleTimeout:
			return "the AI service took too long to respond. Please try again."
		case core.OracleEmpty:
			return "the AI service returned an empty response. Please try again."
		case core.OracleNetwork:
			return "the AI service is unreachable right now. Please try again."
		}
		return oerr.Err.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "the AI service took too long to respond. Please try again."
	}
	return err.Error()
}
