package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/Ayash-Bera/calypso/backend/internal/models"
)

// MetadataPayload opens every search-backed stream.
type MetadataPayload struct {
	Query     string    `json:"query"`
	StreamID  string    `json:"streamId"`
	ClientID  string    `json:"clientId"`
	Timestamp time.Time `json:"timestamp"`
}

// ResultPayload carries one result item with its delivery progress.
type ResultPayload struct {
	Index    int           `json:"index"`
	Result   models.Result `json:"result"`
	Progress string        `json:"progress"`
}

// CompletePayload closes a successful delivery.
type CompletePayload struct {
	Status       string `json:"status"`
	TotalResults int    `json:"totalResults"`
	DurationMs   int64  `json:"duration"`
}

// ErrorPayload closes a failed delivery.
type ErrorPayload struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Deliver runs the result protocol for a search-backed stream on the
// worker pool: one metadata chunk, one result chunk per item separated
// by the stagger interval, one complete chunk, then close. Cancelling
// ctx closes the session with reason client_disconnect and stops all
// pending emissions; the stagger ticker dies with the session's task,
// so nothing fires into a closed session.
func (b *Broker) Deliver(ctx context.Context, streamID string, results []models.Result) error {
	s := b.session(streamID)
	if s == nil {
		return ErrStreamNotFound
	}

	start := b.now()

	return b.pool.Submit(func() {
		b.Emit(streamID, TypeMetadata, MetadataPayload{
			Query:     s.query,
			StreamID:  streamID,
			ClientID:  s.clientID,
			Timestamp: start,
		})

		var tick <-chan time.Time
		if b.stagger > 0 {
			ticker := time.NewTicker(b.stagger)
			defer ticker.Stop()
			tick = ticker.C
		}

		for i, result := range results {
			if tick != nil {
				select {
				case <-ctx.Done():
					b.Close(streamID, ReasonClientDisconnect)
					return
				case <-tick:
				}
			} else if ctx.Err() != nil {
				b.Close(streamID, ReasonClientDisconnect)
				return
			}

			ok := b.Emit(streamID, TypeResult, ResultPayload{
				Index:    i,
				Result:   result,
				Progress: fmt.Sprintf("%d/%d", i+1, len(results)),
			})
			if !ok {
				// Session was closed underneath us (disconnect or
				// shutdown); stop emitting.
				return
			}
		}

		b.Emit(streamID, TypeComplete, CompletePayload{
			Status:       "complete",
			TotalResults: len(results),
			DurationMs:   b.now().Sub(start).Milliseconds(),
		})
		b.Close(streamID, ReasonComplete)
	})
}

// Fail emits a terminal error chunk and closes the stream.
func (b *Broker) Fail(streamID, message string) {
	b.Emit(streamID, TypeError, ErrorPayload{Status: "error", Error: message})
	b.Close(streamID, ReasonError)
}
