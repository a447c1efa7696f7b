// Package exchange holds helpers shared by the venue adapters.
package exchange

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"feedstate/internal/adapter"
	"feedstate/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

const maxErrorBody = 512

// DefaultHTTPClient is used when an adapter is configured without a client.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// DoJSON sends req and decodes a 2xx JSON body into out. Other statuses are reported
// as ErrUnexpectedStatus with the head of the body attached.
func DoJSON(ctx context.Context, client *http.Client, req *http.Request, out any) error {
	if client == nil {
		client = DefaultHTTPClient()
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.Wrapf(exception.ErrUnexpectedStatus, "%s %s, status: %d", req.Method, req.URL.Path, resp.StatusCode).
			With("body", string(body))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s", req.URL.Path)
	}
	return nil
}

// Levels parses [[price, quantity, ...], ...] rows. Columns after the quantity are
// ignored. A zero quantity is kept as a removal; negative quantities and non positive
// prices are malformed.
func Levels(rows [][]string) ([]adapter.Level, error) {
	levels := make([]adapter.Level, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, errors.Wrapf(exception.ErrMalformedMessage, "level %d has %d columns", i, len(row))
		}
		lv, err := adapter.NewLevel(row[0], row[1])
		if err != nil {
			return nil, errors.Wrapf(exception.ErrMalformedMessage, "level %d: %s", i, err.Error())
		}
		if lv.Price.Sign() <= 0 || lv.Quantity.Sign() < 0 {
			return nil, errors.Wrapf(exception.ErrMalformedMessage, "level %d: price %s, quantity %s", i, lv.Price, lv.Quantity)
		}
		levels = append(levels, lv)
	}
	return levels, nil
}

// Decimal parses an optional decimal string; empty means zero.
func Decimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(exception.ErrMalformedMessage, "field %s: %q", field, s)
	}
	return d, nil
}

// Millis converts a unix millisecond timestamp, zero staying the zero time.
func Millis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
