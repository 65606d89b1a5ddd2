package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"financify/internal/core"
	"financify/internal/oracle"

	"github.com/shopspring/decimal"
)

// DocumentAnalysisPrompt is sent together with the uploaded statement image.
const DocumentAnalysisPrompt = `You are an expert financial data extractor. Analyze the provided image of a bank statement, credit card statement, or transaction summary.
Your task is to identify the total monthly income and a list of all expenses.
Summarize the data into a clean JSON format.

- The 'income' should be a single numerical value representing the total credits or salary.
- The 'expenses' should be a list of JSON objects, where each object has a 'category' (e.g., "Rent", "Food", "Shopping", "UPI Transfer") and an 'amount' (a numerical value).
- If you cannot determine a specific category, use a general one like "Miscellaneous" or "Bank Transfer".
- Only extract debit/expense transactions for the expenses list. Ignore credit/income transactions in the expense list.
- If no income is found, set income to 0.

Example output:
{
  "income": 50000,
  "expenses": [
    {"category": "Rent", "amount": 15000},
    {"category": "Zomato", "amount": 1200},
    {"category": "UPI Transfer", "amount": 2000},
    {"category": "Shopping", "amount": 4500}
  ]
}

Provide only the JSON object in your response, with no other text or explanations.`

// SupportedImageTypes are the upload formats accepted for extraction.
var SupportedImageTypes = []string{"image/png", "image/jpeg", "image/webp"}

var errUnsupportedType = errors.New("unsupported file type, please upload an image (PNG, JPG, WEBP)")

// Extraction is the income and expense list read from a document.
type Extraction struct {
	Income   decimal.Decimal
	Expenses []core.ExpenseEntry
}

// Draft converts the extraction into an editable draft for review.
func (e Extraction) Draft() core.Draft {
	d := core.Draft{Income: e.Income, Rows: append([]core.ExpenseEntry(nil), e.Expenses...)}
	if len(d.Rows) == 0 {
		d = d.AddRow()
	}
	return d
}

// ExtractionService turns statement images into draft ledger data.
type ExtractionService struct {
	vision  oracle.VisionGenerator
	timeout time.Duration
}

func NewExtractionService(vision oracle.VisionGenerator, timeout time.Duration) *ExtractionService {
	return &ExtractionService{vision: vision, timeout: timeout}
}

// Extract sends image to the oracle and parses the reply. Nothing is
// returned on failure so callers keep their current draft.
func (s *ExtractionService) Extract(ctx context.Context, image []byte, declaredType string) (Extraction, error) {
	mimeType, err := DetectImageType(image, declaredType)
	if err != nil {
		return Extraction{}, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := s.vision.GenerateFromImage(ctx, DocumentAnalysisPrompt, image, mimeType)
	if err != nil {
		return Extraction{}, fmt.Errorf("analyze document: %w", err)
	}

	ext, err := ParseExtraction(raw)
	if err != nil {
		slog.WarnContext(ctx, "Document extraction reply could not be parsed", "error", err, "chars", len(raw))
		return Extraction{}, err
	}
	slog.InfoContext(ctx, "Document extracted",
		"expenses", len(ext.Expenses),
		"has_income", ext.Income.IsPositive(),
		"duration", time.Since(start))
	return ext, nil
}

// DetectImageType checks that data is a supported image. The declared type
// from the upload is trusted only when the content sniffing agrees.
func DetectImageType(data []byte, declared string) (string, error) {
	if len(data) == 0 {
		return "", core.Invalid("document", errors.New("empty file"))
	}
	sniffed := http.DetectContentType(data)
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared == "image/jpg" {
		declared = "image/jpeg"
	}
	for _, t := range SupportedImageTypes {
		if sniffed == t {
			return t, nil
		}
	}
	if sniffed == "application/octet-stream" {
		for _, t := range SupportedImageTypes {
			if declared == t {
				return t, nil
			}
		}
	}
	return "", core.Invalid("document", errUnsupportedType)
}

// StripFences removes Markdown code fences around a JSON reply.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

type extractionReply struct {
	Income   any              `json:"income"`
	Expenses []map[string]any `json:"expenses"`
}

// ParseExtraction decodes the oracle reply. Entries without a category or
// with a non-positive or unreadable amount are dropped; a missing or
// negative income becomes 0.
func ParseExtraction(raw string) (Extraction, error) {
	body := StripFences(raw)
	reply, err := decodeReply(body)
	if err != nil {
		// Models sometimes add a sentence around the object.
		if i, j := strings.IndexByte(body, '{'), strings.LastIndexByte(body, '}'); i >= 0 && j > i {
			reply, err = decodeReply(body[i : j+1])
		}
	}
	if err != nil {
		return Extraction{}, &core.ExtractionError{Raw: body, Err: err}
	}

	income, ok := toAmount(reply.Income)
	if !ok && reply.Income != nil {
		return Extraction{}, &core.ExtractionError{Raw: body, Err: fmt.Errorf("income is not a number: %v", reply.Income)}
	}

	ext := Extraction{Income: income, Expenses: make([]core.ExpenseEntry, 0, len(reply.Expenses))}
	for _, item := range reply.Expenses {
		cat, _ := item["category"].(string)
		cat = strings.TrimSpace(cat)
		amt, ok := toAmount(item["amount"])
		if cat == "" || !ok || !amt.IsPositive() {
			continue
		}
		ext.Expenses = append(ext.Expenses, core.ExpenseEntry{Category: cat, Amount: amt})
	}
	return ext, nil
}

func decodeReply(body string) (extractionReply, error) {
	var reply *extractionReply
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	if err := dec.Decode(&reply); err != nil {
		return extractionReply{}, err
	}
	if reply == nil {
		return extractionReply{}, errors.New("reply is not a JSON object")
	}
	return *reply, nil
}

// toAmount reads a JSON number or numeric string. Negative values clamp to 0.
func toAmount(v any) (decimal.Decimal, bool) {
	var (
		d   decimal.Decimal
		err error
	)
	switch x := v.(type) {
	case nil:
		return decimal.Zero, false
	case json.Number:
		d, err = decimal.NewFromString(x.String())
	case string:
		s := strings.TrimSpace(x)
		s = strings.TrimLeft(s, "₹$€ ")
		s = strings.ReplaceAll(s, ",", "")
		d, err = decimal.NewFromString(s)
	default:
		return decimal.Zero, false
	}
	if err != nil {
		return decimal.Zero, false
	}
	if d.IsNegative() {
		return decimal.Zero, true
	}
	return d.Round(2), true
}
