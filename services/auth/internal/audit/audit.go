// Package audit ships authentication events to Kafka and Elasticsearch.
package audit

import (
	"context"
	"errors"
	"time"
)

const (
	EventLogin          = "login"
	EventOTPVerify      = "otp_verify"
	EventRefresh        = "refresh"
	EventLogout         = "logout"
	EventPasswordChange = "password_change"
)

type Event struct {
	Type    string    `json:"type"`
	UserID  uint      `json:"user_id,omitempty"`
	Email   string    `json:"email,omitempty"`
	IP      string    `json:"ip,omitempty"`
	Outcome string    `json:"outcome"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

type Sink interface {
	Record(ctx context.Context, ev Event) error
}

type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

// Multi records into every sink and joins their errors.
type Multi []Sink

func (m Multi) Record(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type ipKey struct{}

// WithClientIP attaches the caller address so sinks can record it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(ipKey{}).(string)
	return ip
}
