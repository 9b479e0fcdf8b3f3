package syncrooms

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	activeSet   = "rooms:active"
	linesPrefix = "strokes:"
)

// Every 10 s, mirror per-room stroke counts -> Postgres.
func Run(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	tk := time.NewTicker(10 * time.Second)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				syncOnce(ctx, rdc, db)
			}
		}
	}()
}

func syncOnce(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	rooms, err := rdc.SMembers(ctx, activeSet).Result()
	if err != nil || len(rooms) == 0 {
		return
	}

	// 1. fetch all list lengths in one pipelined round-trip
	pipe := rdc.Pipeline()
	cmds := make([]*redis.IntCmd, len(rooms))
	for i, room := range rooms {
		cmds[i] = pipe.LLen(ctx, linesPrefix+room)
	}

	if _, err = pipe.Exec(ctx); err != nil {
		zap.L().Error("syncrooms.pipeline", zap.Error(err))
		return
	}

	// 2. bulk-upsert into Postgres
	const upsert = `
	INSERT INTO rooms (name, stroke_count, last_active)
	     VALUES ($1, $2, now())
	ON CONFLICT (name) DO UPDATE
	       SET stroke_count=EXCLUDED.stroke_count,
	           last_active=EXCLUDED.last_active`

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		zap.L().Error("syncrooms.tx_begin", zap.Error(err))
		return
	}
	defer tx.Rollback()

	for i, cmd := range cmds {
		count, err := cmd.Result()
		if err != nil {
			continue // key disappeared between SMEMBERS and LLEN
		}
		if _, err := tx.ExecContext(ctx, upsert, rooms[i], count); err != nil {
			zap.L().Error("syncrooms.upsert", zap.String("room", rooms[i]), zap.Error(err))
		}
	}

	err = tx.Commit()
	if err != nil {
		zap.L().Debug("syncrooms_error", zap.Error(err))
	}
}
