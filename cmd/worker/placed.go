package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-storefront-stock/internal/catalog"
	kafkax "github.com/ariefcatur/go-storefront-stock/internal/kafka"
	"github.com/ariefcatur/go-storefront-stock/internal/orders"
	"github.com/ariefcatur/go-storefront-stock/internal/redisx"
)

// orderPlacedHandler drops cached catalogue entries of purchased products.
// Events are deduplicated per consumer group so redeliveries are cheap.
type orderPlacedHandler struct {
	Cache *catalog.Cache
	Redis *redis.Client
	Group string
	Log   zerolog.Logger
}

func (h *orderPlacedHandler) Handle(ctx context.Context, m kafka.Message) error {
	var ev orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &ev); err != nil {
		h.Log.Warn().Err(err).Int64("offset", m.Offset).Msg("skipping undecodable message")
		return nil
	}
	if ev.EventType != orders.EventOrderPlaced {
		return nil
	}

	dedup := fmt.Sprintf(redisx.KeyDedup, h.Group, ev.EventID)
	if seen, err := redisx.Exists(ctx, h.Redis, dedup); err == nil && seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](ev.Payload)
	if err != nil {
		h.Log.Warn().Err(err).Str("event_id", ev.EventID).Msg("skipping bad payload")
		return nil
	}
	ids := make([]string, 0, len(p.Items))
	for _, it := range p.Items {
		ids = append(ids, it.ProductID)
	}
	if err := h.Cache.Evict(ctx, ids...); err != nil {
		return err
	}
	if err := h.Redis.Set(ctx, dedup, 1, redisx.TTLDedup).Err(); err != nil {
		h.Log.Warn().Err(err).Str("event_id", ev.EventID).Msg("mark event processed")
	}
	h.Log.Debug().Str("order_id", p.OrderID).Strs("products", ids).Msg("catalog cache evicted")
	return nil
}
