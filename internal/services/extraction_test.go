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

// 1x1 PNG header is enough for content sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func TestParseExtractionFilters(t *testing.T) {
	raw := `{"income":50000,"expenses":[{"category":"Rent","amount":15000},{"category":"","amount":500},{"category":"Gift","amount":0}]}`
	ext, err := ParseExtraction(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ext.Income.Equal(core.MustAmount("50000")) {
		t.Fatalf("expected income 50000, got %s", ext.Income)
	}
	if len(ext.Expenses) != 1 || ext.Expenses[0].Category != "Rent" || !ext.Expenses[0].Amount.Equal(core.MustAmount("15000")) {
		t.Fatalf("expected only Rent 15000, got %+v", ext.Expenses)
	}
}

func TestParseExtractionLenient(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		income   string
		expenses int
	}{
		{"fenced", "```json\n{\"income\": 100, \"expenses\": []}\n```", "100", 0},
		{"bare fence", "```\n{\"income\": 100}\n```", "100", 0},
		{"missing income", `{"expenses":[{"category":"Food","amount":10}]}`, "0", 1},
		{"negative income", `{"income":-5,"expenses":[]}`, "0", 0},
		{"string amounts", `{"income":"1,200","expenses":[{"category":"Food","amount":"₹ 350.50"}]}`, "1200", 1},
		{"missing category key", `{"income":1,"expenses":[{"amount":10},{"category":"  ","amount":10}]}`, "1", 0},
		{"negative amount", `{"income":1,"expenses":[{"category":"Refund","amount":-10}]}`, "1", 0},
		{"unreadable amount", `{"income":1,"expenses":[{"category":"Food","amount":"lots"}]}`, "1", 0},
		{"surrounding prose", "Here you go: {\"income\": 7, \"expenses\": []} Hope it helps.", "7", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := ParseExtraction(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !ext.Income.Equal(core.MustAmount(tt.income)) {
				t.Errorf("expected income %s, got %s", tt.income, ext.Income)
			}
			if len(ext.Expenses) != tt.expenses {
				t.Errorf("expected %d expenses, got %+v", tt.expenses, ext.Expenses)
			}
		})
	}
}

func TestParseExtractionInvalid(t *testing.T) {
	for _, raw := range []string{
		"I could not read this statement.",
		`{"income": 5, "expenses": "none"}`,
		`{"income": true}`,
		"",
		"null",
		"```json\nnull\n```",
	} {
		_, err := ParseExtraction(raw)
		if !errors.Is(err, core.ErrExtractionFailed) {
			t.Errorf("%q: expected ErrExtractionFailed, got %v", raw, err)
		}
		var xerr *core.ExtractionError
		if !errors.As(err, &xerr) {
			t.Errorf("%q: expected *core.ExtractionError", raw)
		}
	}
}

func TestDetectImageType(t *testing.T) {
	if got, err := DetectImageType(pngBytes, "application/octet-stream"); err != nil || got != "image/png" {
		t.Fatalf("expected image/png, got %q %v", got, err)
	}
	if _, err := DetectImageType([]byte("%PDF-1.7 ..."), "application/pdf"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error for pdf, got %v", err)
	}
	if _, err := DetectImageType(nil, "image/png"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error for empty file, got %v", err)
	}
}

func TestExtractUsesOracle(t *testing.T) {
	o := memory.New().ScriptVision("```json\n{\"income\": 42000, \"expenses\": [{\"category\": \"Rent\", \"amount\": 12000}]}\n```")
	svc := NewExtractionService(o, time.Second)

	ext, err := svc.Extract(context.Background(), pngBytes, "image/png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ext.Income.Equal(core.MustAmount("42000")) || len(ext.Expenses) != 1 {
		t.Fatalf("unexpected extraction %+v", ext)
	}

	calls := o.ImageCalls()
	if len(calls) != 1 || calls[0].Prompt != DocumentAnalysisPrompt || calls[0].MimeType != "image/png" {
		t.Fatalf("unexpected oracle calls %+v", calls)
	}

	d := ext.Draft()
	if !d.Income.Equal(ext.Income) || len(d.Rows) != 1 {
		t.Fatalf("unexpected draft %+v", d)
	}
}

func TestExtractOracleFailure(t *testing.T) {
	o := memory.New().FailVision(errors.New("quota exceeded"))
	_, err := NewExtractionService(o, time.Second).Extract(context.Background(), pngBytes, "image/png")
	if !errors.Is(err, core.ErrOracle) {
		t.Fatalf("expected oracle error, got %v", err)
	}
	if !strings.Contains(err.Error(), "analyze document") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestExtractRejectsNonImage(t *testing.T) {
	o := memory.New()
	_, err := NewExtractionService(o, time.Second).Extract(context.Background(), []byte("hello"), "text/plain")
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(o.ImageCalls()) != 0 {
		t.Fatal("oracle must not be called for unsupported files")
	}
}

func TestEmptyExtractionDraftHasRow(t *testing.T) {
	d := Extraction{}.Draft()
	if len(d.Rows) != 1 {
		t.Fatalf("expected one blank row, got %d", len(d.Rows))
	}
}
