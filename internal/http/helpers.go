package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"financify/internal/catalog"
	"financify/internal/core"
	"financify/internal/log"

	"github.com/shopspring/decimal"
)

// formatRupees formats an amount as whole rupees grouped in thousands
// (e.g., "₹15,000").
func formatRupees(d decimal.Decimal) string {
	d = d.Round(0)
	neg := d.IsNegative()
	digits := d.Abs().StringFixed(0)

	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-₹" + b.String()
	}
	return "₹" + b.String()
}

// formatPct renders a percentage without decimals.
func formatPct(v float64) string {
	return strconv.FormatFloat(math.Round(v), 'f', 0, 64) + "%"
}

// barWidth clamps a percentage to 0..100 for CSS widths.
func barWidth(v any) int {
	var f float64
	switch x := v.(type) {
	case int:
		f = float64(x)
	case float64:
		f = x
	}
	switch {
	case f < 0:
		return 0
	case f > 100:
		return 100
	}
	return int(math.Round(f))
}

// greetingFor returns the time-of-day greeting.
func greetingFor(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return "Good morning"
	case h >= 12 && h < 18:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// isHTMX reports whether r was issued by htmx and expects a fragment.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrRequestInFlight),
		errors.Is(err, core.ErrQuizCompleted),
		errors.Is(err, errQuizClosed):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrLessonNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrExtractionFailed),
		errors.Is(err, core.ErrNoAnswer),
		errors.Is(err, core.ErrAtFirstQuestion):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrOracle):
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// errorType classifies err for the error_type log field.
func errorType(err error) string {
	switch statusFor(err) {
	case http.StatusConflict:
		return log.ErrorTypeConflict
	case http.StatusNotFound:
		return log.ErrorTypeNotFound
	case http.StatusUnprocessableEntity:
		if errors.Is(err, core.ErrExtractionFailed) {
			return log.ErrorTypeExtraction
		}
		return log.ErrorTypeValidation
	case http.StatusOK:
		return log.ErrorTypeOracle
	}
	return log.ErrorTypeInternal
}

// userMessage is the text shown for a validation error: the reasons
// without the field prefixes.
func userMessage(err error) string {
	var msgs []string
	var collect func(error)
	collect = func(e error) {
		var verr *core.ValidationError
		switch x := e.(type) {
		case *core.ValidationError:
			msgs = append(msgs, capitalize(x.Err.Error()))
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				collect(inner)
			}
		default:
			if errors.As(e, &verr) {
				collect(verr)
				return
			}
			msgs = append(msgs, capitalize(e.Error()))
		}
	}
	collect(err)
	return strings.Join(msgs, ". ") + "."
}

func capitalize(s string) string {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
