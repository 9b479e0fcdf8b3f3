package syncstrokes

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const stream = "strokes_stream"

// Run tails the Redis stream and archives every completed stroke to
// Postgres. Redis stays the source of truth for replay; this is the
// offload path for rooms whose history outlives the cache.
func Run(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	go func() {
		lastID := "0-0"
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			// block up to 2 s for new entries
			res, err := rdc.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   100,
				Block:   2000 * time.Millisecond,
			}).Result()
			if err != nil && err != redis.Nil {
				zap.L().Warn("syncstrokes.xread", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if len(res) == 0 {
				continue
			}
			entries := res[0].Messages
			if err := persist(ctx, db, entries); err != nil {
				zap.L().Warn("syncstrokes.persist", zap.Error(err))
			}
			lastID = entries[len(entries)-1].ID
		}
	}()
}

func persist(ctx context.Context, db *sql.DB, msgs []redis.XMessage) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	const ins = `INSERT INTO strokes (room, stroke_id, pointer, drawn_at)
	             VALUES ($1, $2, $3, now())
	             ON CONFLICT DO NOTHING`
	for _, m := range msgs {
		room, _ := m.Values["room"].(string)
		id, _ := m.Values["id"].(string)
		pointer, _ := m.Values["pointer"].(string)
		if room == "" || id == "" {
			continue // malformed entry, skip rather than stall the tail
		}
		if _, err := tx.ExecContext(ctx, ins, room, id, pointer); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
