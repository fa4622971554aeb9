package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"

	"mailtriage/pkg/circuitbreaker"
)

func TestIsRetryableError(t *testing.T) {
	jsonErr := json.Unmarshal([]byte("{"), &struct{}{})

	cases := []struct {
		name      string
		err       error
		retryable bool
		errType   string
	}{
		{"nil", nil, false, ""},
		{"breaker open", circuitbreaker.ErrOpen, false, "breaker_open"},
		{"wrapped breaker open", fmt.Errorf("route: %w", circuitbreaker.ErrOpen), false, "breaker_open"},
		{"json syntax", jsonErr, false, "json_decode_error"},
		{"no rows", pgx.ErrNoRows, false, "not_found"},
		{"duplicate key", errors.New(`duplicate key value violates unique constraint "emails_message_id_key"`), false, "duplicate_key"},
		{"db connection", errors.New("failed to connect: connection refused"), true, "db_connection_error"},
		{"deadline", context.DeadlineExceeded, true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"overloaded", errors.New("anthropic: 529 overloaded_error"), true, "capability_overloaded"},
		{"unknown", errors.New("something odd"), false, "unknown_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			retryable, errType := IsRetryableError(tc.err)
			if retryable != tc.retryable || errType != tc.errType {
				t.Errorf("got (%v, %q), want (%v, %q)", retryable, errType, tc.retryable, tc.errType)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	if ShouldRetry(1, 5, false) {
		t.Error("non-retryable error should never retry")
	}
	if !ShouldRetry(5, 5, true) {
		t.Error("retry at the limit should be allowed")
	}
	if ShouldRetry(6, 5, true) {
		t.Error("retry over the limit should be denied")
	}
}
