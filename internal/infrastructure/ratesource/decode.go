package ratesource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vitos/loop_scanner/internal/domain"
)

var errNotSnapshot = errors.New("payload carries no rates")

type envelope struct {
	Data  *[]domain.RateEntry `json:"data"`
	Rates *[]domain.RateEntry `json:"rates"`
}

// decodeRates accepts either a bare JSON array of rates or an object
// wrapping it under "data" or "rates".
func decodeRates(body []byte) ([]domain.RateEntry, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errNotSnapshot
	}

	if body[0] == '[' {
		var rates []domain.RateEntry
		if err := json.Unmarshal(body, &rates); err != nil {
			return nil, fmt.Errorf("failed to decode rates: %w", err)
		}
		return rates, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode rates: %w", err)
	}
	switch {
	case env.Data != nil:
		return *env.Data, nil
	case env.Rates != nil:
		return *env.Rates, nil
	}
	return nil, errNotSnapshot
}
