package retro

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
	"neon2retro/internal/normalize"
)

// VerifyTolerance is the largest accepted difference between the sent and
// the stored total.
var VerifyTolerance = decimal.RequireFromString("0.01")

// Verification describes a pending invoice found on the destination.
type Verification struct {
	Reference    string
	Expected     decimal.Decimal
	Actual       decimal.Decimal
	Status       string
	Organization string
	Currency     string
	Matched      bool
}

type pendingEnvelope struct {
	Data []map[string]any `json:"Data"`
}

// Verify looks the reference up in the pending-assignment list and compares
// its stored total with expected. A found invoice is always returned, even
// when the amounts differ.
func (c *Client) Verify(ctx context.Context, reference string, expected decimal.Decimal) (*Verification, error) {
	const op = "Verify"

	if !c.authenticated.Load() {
		return nil, NewRetroError(op, ErrNotAuthenticated, "")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+pendingPath, http.NoBody)
	if err != nil {
		return nil, WrapRetroError(op, err, "build request")
	}
	c.setCommonHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, WrapRetroError(op, err, reference)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, WrapRetroError(op, err, "read body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewRetroError(op, ErrUnexpectedStatus, fmt.Sprintf("status %d", resp.StatusCode))
	}

	raw, err := unwrapJSON(body)
	if err != nil {
		return nil, WrapRetroError(op, err, "")
	}

	var env pendingEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, NewRetroError(op, ErrMalformedResponse, err.Error())
	}

	for _, entry := range env.Data {
		if normalize.Text(entry["ReferenceNumber"]) != reference {
			continue
		}

		v := &Verification{
			Reference:    reference,
			Expected:     expected,
			Actual:       normalize.Numeric(entry["TotalAmount"]),
			Status:       normalize.Text(entry["Status"]),
			Organization: normalize.Text(entry["Organization"]),
			Currency:     normalize.Text(entry["Currency"]),
		}
		v.Matched = v.Actual.Sub(expected).Abs().LessThan(VerifyTolerance)

		c.log.Debug().
			Str("reference", reference).
			Str("expected", expected.StringFixed(2)).
			Str("actual", v.Actual.StringFixed(2)).
			Bool("matched", v.Matched).
			Msg("Verified pending invoice")

		if !v.Matched {
			return v, NewRetroError(op, ErrAmountMismatch, fmt.Sprintf("expected %s, got %s", expected.StringFixed(2), v.Actual.StringFixed(2)))
		}
		return v, nil
	}

	return nil, NewRetroError(op, ErrNotFound, reference)
}
