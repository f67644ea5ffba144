package projector

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ibnuhabibr/kitversity-pm2-sub000/internal/kafka"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/orders"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/redisx"
)

// Service keeps the Redis status projection in line with
// order.status.changed events.
type Service struct {
	Cache *redisx.OrderCache
	Dedup *redisx.Dedup
	Log   *zap.Logger
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// HandleStatusChanged is installed as the consumer handler. Undecodable
// messages are logged and skipped so they do not block the partition.
func (s *Service) HandleStatusChanged(ctx context.Context, m kafkago.Message) error {
	// 1) envelope
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		s.log().Warn("skip undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventOrderStatusChanged {
		return nil
	}

	// 2) dedup by event id
	if s.Dedup.Seen(ctx, env.EventID) {
		return nil
	}

	// 3) payload
	p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
	if err != nil {
		s.log().Warn("skip bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if p.OrderID == "" || !p.To.Valid() || p.Version < 1 {
		s.log().Warn("skip status event without order, status or version", zap.String("event_id", env.EventID))
		return nil
	}

	// the API projects synchronously; this repairs a projection whose write
	// failed there. Older versions are ignored by the cache.
	s.Cache.SetStatus(ctx, p.OrderID, string(p.To), p.Version, env.OccurredAt)
	s.Dedup.Mark(ctx, env.EventID)
	s.log().Info("status projection refreshed",
		zap.String("order_id", p.OrderID),
		zap.String("status", string(p.To)),
		zap.Int("version", p.Version),
		zap.String("source", p.Source),
		zap.String("trace_id", env.TraceID),
	)
	return nil
}
