// Package http serves the Financify web UI.
//
// This file implements utilities for parsing and validating HTTP request data.
// It reduces code duplication by providing reusable functions for the draft,
// profile and single-field forms posted by the pages.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"financify/internal/core"
)

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(r.Body)
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' || p.body[0] == '[' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// GetRaw returns the raw body bytes.
func (p *RequestBodyParser) GetRaw() []byte {
	return p.body
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}

// ParseDraftForm reads the income field and the parallel category/amount
// lists of the manual entry form. Rows are kept even when blank; every
// unreadable amount is reported.
func ParseDraftForm(form url.Values) (core.Draft, error) {
	var errs []error

	income, err := core.ParseAmount(form.Get("income"))
	if err != nil {
		errs = append(errs, core.Invalid("income", fmt.Errorf("income: %w", err)))
	}

	categories := form["category"]
	amounts := form["amount"]
	n := max(len(categories), len(amounts))

	rows := make([]core.ExpenseEntry, 0, n)
	for i := 0; i < n; i++ {
		var category, raw string
		if i < len(categories) {
			category = sanitizeInput(categories[i])
		}
		if i < len(amounts) {
			raw = amounts[i]
		}
		amount, err := core.ParseAmount(raw)
		if err != nil {
			errs = append(errs, core.Invalid("amount", fmt.Errorf("expense %d: %w", i+1, err)))
			continue
		}
		rows = append(rows, core.ExpenseEntry{Category: category, Amount: amount})
	}
	if len(errs) > 0 {
		return core.Draft{}, errors.Join(errs...)
	}

	d, err := core.Draft{}.WithIncome(income)
	if err != nil {
		return core.Draft{}, err
	}
	return d.WithRows(rows)
}

// ParseProfileForm reads the onboarding form. The result is not validated.
func ParseProfileForm(p *RequestBodyParser) (core.Profile, error) {
	prof := core.NewProfile()
	prof.Name = p.Get("name")
	prof.Occupation = p.Get("occupation")
	prof.FamilyManagement = parseCheckbox(p.Get("family_management"))

	if raw := p.Get("sector"); raw != "" {
		if sec, ok := core.ParseSector(raw); ok {
			prof.Sector = sec
		} else {
			prof.Sector = core.Sector(raw)
		}
	}

	if raw := p.Get("age"); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil {
			return prof, core.Invalid("age", errors.New("age must be a whole number"))
		}
		prof.Age = age
	}
	return prof, nil
}

func parseCheckbox(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "yes", "1":
		return true
	}
	return false
}
