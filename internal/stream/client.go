// Package stream ingests flow records from an upstream sensor over a
// WebSocket feed. The client maintains the connection with exponential
// backoff, authenticates when credentials are configured, and hands parsed
// flows to the pipeline without ever blocking the read loop.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/features"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/metrics"
)

// Client connects to a flow sensor and streams parsed records.
type Client struct {
	url     string
	key     string
	secret  string
	ping    time.Duration
	stats   Stats
	counter *metrics.Wrapper
}

// NewClient builds a sensor client. key and secret may be empty for
// unauthenticated sensors; counters may be nil when metrics are not wired.
func NewClient(url, key, secret string, ping time.Duration, counters *metrics.Wrapper) *Client {
	if ping <= 0 {
		ping = 15 * time.Second
	}
	return &Client{url: url, key: key, secret: secret, ping: ping, counter: counters}
}

// Stats returns the ingest counters for status reporting.
func (c *Client) Stats() StatsSnapshot {
	return c.stats.Snapshot()
}

// Stream runs the connect/read/reconnect loop until the context is canceled.
// Parsed flows go to flows; connection and parse errors go to errs without
// blocking.
func (c *Client) Stream(ctx context.Context, flows chan<- features.FlowRecord, errs chan<- error) error {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := c.streamOnce(ctx, flows, errs); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Dur("backoff", backoff).Msg("sensor connection failed, reconnecting")
				c.stats.reconnects.Add(1)
				if c.counter != nil {
					c.counter.SensorRestarts().Inc()
				}
				select {
				case errs <- fmt.Errorf("sensor reconnect: %w", err):
				default:
				}

				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return ctx.Err()
				}

				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}
			backoff = time.Second
		}
	}
}

func (c *Client) streamOnce(ctx context.Context, flows chan<- features.FlowRecord, errs chan<- error) error {
	log.Info().Str("url", c.url).Msg("establishing sensor connection")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer func() {
		conn.Close()
		log.Debug().Msg("sensor connection closed")
	}()

	conn.SetReadLimit(512 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

	conn.SetCloseHandler(func(code int, text string) error {
		log.Warn().Int("code", code).Str("text", text).Msg("sensor closed the connection")
		return fmt.Errorf("connection closed: %d %s", code, text)
	})

	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	if c.key != "" {
		if err := c.authenticate(conn); err != nil {
			return fmt.Errorf("auth failed: %w", err)
		}
	}

	if err := conn.WriteJSON(map[string]any{
		"op":   "subscribe",
		"args": []map[string]string{{"ch": "flows"}},
	}); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}

	pingTicker := time.NewTicker(c.ping)
	defer pingTicker.Stop()

	if err := conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
		return fmt.Errorf("initial ping failed: %w", err)
	}

	lastDataReceived := time.Now()
	healthCheckTicker := time.NewTicker(30 * time.Second)
	defer healthCheckTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
		case <-healthCheckTicker.C:
			if time.Since(lastDataReceived) > 60*time.Second {
				return fmt.Errorf("connection appears stale - no data for %v", time.Since(lastDataReceived))
			}
		default:
			conn.SetReadDeadline(time.Now().Add(30 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Info().Msg("sensor connection closed normally")
					return err
				}
				return fmt.Errorf("read message failed: %w", err)
			}

			lastDataReceived = time.Now()
			c.stats.received.Add(1)

			var raw map[string]any
			if err := json.Unmarshal(msg, &raw); err != nil {
				c.noteParseFailure(fmt.Errorf("unmarshal message: %w", err), errs)
				continue
			}

			if op, ok := raw["op"].(string); ok && op == "subscribe" {
				if success, ok := raw["success"].(bool); ok && success {
					log.Info().Msg("subscribed to sensor flow channel")
				} else {
					log.Warn().Interface("response", raw).Msg("subscription may have failed")
				}
				continue
			}

			if raw["ch"] != "flows" {
				continue
			}

			flow, err := parseFlow(raw)
			if err != nil {
				c.noteParseFailure(fmt.Errorf("parse flow: %w", err), errs)
				continue
			}
			c.stats.parsed.Add(1)
			if c.counter != nil {
				c.counter.FlowsIngested().Inc()
			}

			select {
			case flows <- flow:
			default:
				c.stats.dropped.Add(1)
				if c.counter != nil {
					c.counter.FlowsDropped().Inc()
				}
				log.Warn().Str("source", flow.SrcAddr).Msg("flow channel full, dropping record")
			}
		}
	}
}

// authenticate performs the signed handshake before subscribing.
func (c *Client) authenticate(conn *websocket.Conn) error {
	nonce := uuid.NewString()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	return conn.WriteJSON(map[string]any{
		"op": "auth",
		"args": map[string]string{
			"apiKey":    c.key,
			"nonce":     nonce,
			"timestamp": ts,
			"sign":      Sign(c.secret, nonce, c.key, ts),
		},
	})
}

func (c *Client) noteParseFailure(err error, errs chan<- error) {
	c.stats.parseFails.Add(1)
	if c.counter != nil {
		c.counter.ParseErrors().Inc()
	}
	log.Debug().Err(err).Msg("failed to parse sensor message")
	select {
	case errs <- err:
	default:
	}
}

// parseFlow validates and converts one sensor message into a flow record.
// Every numeric field goes through toFloat so malformed payloads are rejected
// instead of becoming NaN features downstream.
func parseFlow(m map[string]any) (features.FlowRecord, error) {
	data, ok := m["data"].(map[string]any)
	if !ok {
		return features.FlowRecord{}, fmt.Errorf("invalid flow data format")
	}

	src, ok := data["src_addr"].(string)
	if !ok || src == "" {
		return features.FlowRecord{}, fmt.Errorf("missing source address")
	}
	dst, ok := data["dst_addr"].(string)
	if !ok || dst == "" {
		return features.FlowRecord{}, fmt.Errorf("missing destination address")
	}

	port, err := toInt(data["dst_port"])
	if err != nil {
		return features.FlowRecord{}, fmt.Errorf("invalid dst_port: %w", err)
	}
	if port < 0 || port > 65535 {
		return features.FlowRecord{}, fmt.Errorf("dst_port %d out of range", port)
	}

	protocol, _ := data["protocol"].(string)

	duration, err := toFloat(data["duration"])
	if err != nil {
		return features.FlowRecord{}, fmt.Errorf("invalid duration: %w", err)
	}
	if duration < 0 {
		return features.FlowRecord{}, fmt.Errorf("negative duration %f", duration)
	}

	flow := features.FlowRecord{
		SrcAddr:  src,
		DstAddr:  dst,
		DstPort:  port,
		Protocol: protocol,
		Duration: duration,
		Label:    features.UnlabeledFlow,
	}

	counts := []struct {
		field string
		dst   *int64
	}{
		{"bytes_in", &flow.BytesIn},
		{"bytes_out", &flow.BytesOut},
		{"pkts_in", &flow.PktsIn},
		{"pkts_out", &flow.PktsOut},
	}
	for _, c := range counts {
		n, err := toInt64(data[c.field])
		if err != nil {
			return features.FlowRecord{}, fmt.Errorf("invalid %s: %w", c.field, err)
		}
		if n < 0 {
			return features.FlowRecord{}, fmt.Errorf("negative %s: %d", c.field, n)
		}
		*c.dst = n
	}

	flags := []struct {
		field string
		dst   *int
	}{
		{"syn_count", &flow.SynCount},
		{"ack_count", &flow.AckCount},
		{"fin_count", &flow.FinCount},
		{"rst_count", &flow.RstCount},
	}
	for _, f := range flags {
		if _, present := data[f.field]; !present {
			continue
		}
		n, err := toInt(data[f.field])
		if err != nil {
			return features.FlowRecord{}, fmt.Errorf("invalid %s: %w", f.field, err)
		}
		if n < 0 {
			return features.FlowRecord{}, fmt.Errorf("negative %s: %d", f.field, n)
		}
		*f.dst = n
	}

	if label, present := data["label"]; present {
		n, err := toInt(label)
		if err != nil || (n != 0 && n != 1 && n != features.UnlabeledFlow) {
			return features.FlowRecord{}, fmt.Errorf("invalid label %v", label)
		}
		flow.Label = n
	}

	if ts, ok := data["timestamp"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			flow.Timestamp = parsed
		}
	}
	if flow.Timestamp.IsZero() {
		flow.Timestamp = time.Now()
	}

	return flow, nil
}

func toFloat(v any) (float64, error) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return 0, fmt.Errorf("empty string")
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse string '%s' as float: %w", val, err)
		}
		if f != f {
			return 0, fmt.Errorf("parsed value is NaN")
		}
		if f == f+1 {
			return 0, fmt.Errorf("parsed value is infinite")
		}
		return f, nil
	case float64:
		if val != val {
			return 0, fmt.Errorf("value is NaN")
		}
		if val == val+1 {
			return 0, fmt.Errorf("value is infinite")
		}
		return val, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("value type %T is not convertible to float", v)
	}
}

func toInt(v any) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func toInt64(v any) (int64, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
