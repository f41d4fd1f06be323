package pricefeed

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Streamer keeps a websocket subscription to a quote feed and pushes
// every received trade price into the cache. Exchange symbols may carry
// a venue suffix (B3 symbols trade as PETR4.SA on the feed); the suffix
// is appended on subscribe and stripped on receipt.
type Streamer struct {
	url          string
	symbolSuffix string
	cache        *Cache
	logger       *zap.Logger

	symbols []string
}

func NewStreamer(url, symbolSuffix string, symbols []string, cache *Cache, logger *zap.Logger) *Streamer {
	return &Streamer{
		url:          url,
		symbolSuffix: symbolSuffix,
		cache:        cache,
		logger:       logger,
		symbols:      symbols,
	}
}

type subscribeMessage struct {
	Subscribe []string `json:"subscribe"`
}

type quoteMessage struct {
	Symbol string  `json:"id"`
	Price  float64 `json:"price"`
}

// Run connects, subscribes and consumes quotes until the context is
// cancelled, reconnecting with a flat backoff on any failure.
func (s *Streamer) Run(ctx context.Context) {
	for {
		if err := s.consume(ctx); err != nil {
			s.logger.Warn("quote stream interrupted", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (s *Streamer) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Close the socket when the context goes away so ReadMessage wakes.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	subscribe := subscribeMessage{Subscribe: make([]string, 0, len(s.symbols))}
	for _, symbol := range s.symbols {
		subscribe.Subscribe = append(subscribe.Subscribe, symbol+s.symbolSuffix)
	}
	if err := conn.WriteJSON(subscribe); err != nil {
		return err
	}
	s.logger.Info("subscribed to quote stream", zap.Strings("symbols", subscribe.Subscribe))

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var quote quoteMessage
		if err := json.Unmarshal(payload, &quote); err != nil {
			s.logger.Debug("unparseable quote", zap.ByteString("payload", payload))
			continue
		}
		if quote.Symbol == "" || quote.Price <= 0 {
			continue
		}

		symbol := strings.TrimSuffix(quote.Symbol, s.symbolSuffix)
		s.cache.Set(symbol, decimal.NewFromFloat(quote.Price))
	}
}
