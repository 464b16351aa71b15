package analytics

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/kafka"
)

// HandleEvent returns a Kafka message handler that decodes published search
// events and records them. Undecodable messages are reported to the consumer
// and left uncommitted.
func HandleEvent(recorder *Recorder) kafka.MessageHandler {
	return func(_ context.Context, _, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			return err
		}
		recorder.Record(event)
		return nil
	}
}
