package journal

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"olafo/relay"
)

const streamMaxLen = 10000

// Redis appends entries to a capped stream so other services can consume
// relay outcomes with XREAD/XREADGROUP.
type Redis struct {
	rdb    *redis.Client
	stream string
}

// NewRedis connects to url and checks the connection.
func NewRedis(ctx context.Context, url, stream string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("journal: invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("journal: redis ping: %w", err)
	}
	return &Redis{rdb: rdb, stream: stream}, nil
}

func (r *Redis) Record(ctx context.Context, e relay.Entry) error {
	err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: streamValues(e),
	}).Err()
	if err != nil {
		return fmt.Errorf("journal: xadd %s: %w", r.stream, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func streamValues(e relay.Entry) map[string]any {
	return map[string]any{
		"relay_id":        e.RelayID,
		"platform":        e.Event.Platform,
		"sender_id":       e.Event.SenderID,
		"recipient_id":    e.Event.RecipientID,
		"message_id":      e.Event.MessageID,
		"timestamp":       strconv.FormatInt(e.Event.Timestamp, 10),
		"text":            e.Event.Text,
		"reply":           e.Reply,
		"outcome":         string(e.Outcome),
		"upstream_status": strconv.Itoa(e.UpstreamStatus),
		"created_at":      e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
