package audit

import (
	"context"
	"strconv"
)

type publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

// KafkaSink publishes events keyed by user id, so one user's events stay ordered.
type KafkaSink struct {
	producer publisher
	topic    string
}

func NewKafkaSink(p publisher, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (s *KafkaSink) Record(ctx context.Context, ev Event) error {
	key := strconv.FormatUint(uint64(ev.UserID), 10)
	if ev.UserID == 0 {
		key = ev.Email
	}
	return s.producer.PublishEvent(ctx, s.topic, key, ev)
}
