// Package memory provides a scripted oracle for offline development and
// tests. It never leaves the process.
package memory

import (
	"context"
	"errors"
	"sync"

	"financify/internal/core"
	ports "financify/internal/oracle"
)

const (
	defaultText = `### Budget summary
Your income covers your expenses. Keep saving regularly and build an emergency fund of at least three months of living expenses.

**Disclaimer:** This advice is for educational purposes only and is not a substitute for professional financial consultation.`

	defaultVision = "```json\n" + `{"income": 50000, "expenses": [{"category": "Rent", "amount": 15000}, {"category": "Groceries", "amount": 6000}, {"category": "UPI Transfer", "amount": 2000}]}` + "\n```"
)

// Call records one request made to the oracle.
type Call struct {
	Prompt   string
	Image    []byte
	MimeType string
}

type Oracle struct {
	mu         sync.Mutex
	text       []string
	vision     []string
	textErr    error
	visionErr  error
	textCalls  []Call
	imageCalls []Call
	creds      ports.CredentialProvider
}

// Ensure interface conformance
var _ ports.Oracle = (*Oracle)(nil)

// New returns an oracle that answers with canned replies.
func New() *Oracle {
	return &Oracle{}
}

// WithCredentials makes every call fail with a credentials error when p
// yields no key, mirroring a real backend.
func (o *Oracle) WithCredentials(p ports.CredentialProvider) *Oracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.creds = p
	return o
}

// ScriptText queues replies for GenerateText. Once the queue is empty the
// last reply is repeated.
func (o *Oracle) ScriptText(replies ...string) *Oracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.text = append(o.text, replies...)
	return o
}

// ScriptVision queues replies for GenerateFromImage.
func (o *Oracle) ScriptVision(replies ...string) *Oracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.vision = append(o.vision, replies...)
	return o
}

// FailText makes GenerateText return err until cleared with nil.
func (o *Oracle) FailText(err error) *Oracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.textErr = err
	return o
}

// FailVision makes GenerateFromImage return err until cleared with nil.
func (o *Oracle) FailVision(err error) *Oracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.visionErr = err
	return o
}

func (o *Oracle) GenerateText(ctx context.Context, prompt string) (string, error) {
	if err := o.check(ctx, "generate_text"); err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.textCalls = append(o.textCalls, Call{Prompt: prompt})
	if o.textErr != nil {
		return "", &core.OracleError{Op: "generate_text", Kind: core.OracleOther, Err: o.textErr}
	}
	return next(&o.text, defaultText), nil
}

func (o *Oracle) GenerateFromImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if err := o.check(ctx, "generate_from_image"); err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	img := append([]byte(nil), image...)
	o.imageCalls = append(o.imageCalls, Call{Prompt: prompt, Image: img, MimeType: mimeType})
	if o.visionErr != nil {
		return "", &core.OracleError{Op: "generate_from_image", Kind: core.OracleOther, Err: o.visionErr}
	}
	return next(&o.vision, defaultVision), nil
}

// TextCalls returns the prompts sent to GenerateText.
func (o *Oracle) TextCalls() []Call {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Call(nil), o.textCalls...)
}

// ImageCalls returns the requests sent to GenerateFromImage.
func (o *Oracle) ImageCalls() []Call {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Call(nil), o.imageCalls...)
}

func (o *Oracle) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		kind := core.OracleOther
		if errors.Is(err, context.DeadlineExceeded) {
			kind = core.OracleTimeout
		}
		return &core.OracleError{Op: op, Kind: kind, Err: err}
	}
	o.mu.Lock()
	creds := o.creds
	o.mu.Unlock()
	if creds != nil && !ports.HasKey(ctx, creds) {
		return &core.OracleError{Op: op, Kind: core.OracleCredentials, Err: ports.ErrMissingCredentials}
	}
	return nil
}

func next(queue *[]string, fallback string) string {
	q := *queue
	switch len(q) {
	case 0:
		return fallback
	case 1:
		return q[0]
	}
	*queue = q[1:]
	return q[0]
}
