package strokelog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StrokeRecord is one completed stroke. The pointer payload is opaque:
// whatever coordinate shape the drawing client sent is stored and
// replayed byte-for-byte.
type StrokeRecord struct {
	ID      uint64          `json:"id"`
	Pointer json.RawMessage `json:"pointer"`
}

const (
	// Per-room keys. The list is LPUSH'd, so physical order is
	// newest-first and Replay reverses it.
	linesKeyPrefix   = "strokes:"
	counterKeySuffix = ":id"

	activeRoomsKey = "rooms:active"
	archiveStream  = "strokes_stream"
)

var ErrStoreUnavailable = errors.New("stroke store unavailable")

type IStrokeLog interface {
	Append(ctx context.Context, room string, pointer json.RawMessage) (StrokeRecord, error)
	Replay(ctx context.Context, room string) ([]StrokeRecord, error)
	ActiveRooms(ctx context.Context) ([]string, error)
}

type strokeLog struct {
	rdc *redis.Client
}

var _ IStrokeLog = (*strokeLog)(nil)

func New(rdc *redis.Client) IStrokeLog {
	return &strokeLog{rdc: rdc}
}

func linesKey(room string) string   { return linesKeyPrefix + room }
func counterKey(room string) string { return linesKey(room) + counterKeySuffix }

// Append allocates the next ID for the room and pushes the record.
// INCR and LPUSH are two round trips: a crash in between leaves a gap
// in the sequence but never a lost or half-written record. Concurrent
// callers each get a distinct ID because INCR is atomic on the server.
func (s *strokeLog) Append(ctx context.Context, room string, pointer json.RawMessage) (StrokeRecord, error) {
	id, err := s.rdc.Incr(ctx, counterKey(room)).Result()
	if err != nil {
		return StrokeRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	rec := StrokeRecord{ID: uint64(id), Pointer: pointer}
	payload, err := json.Marshal(rec)
	if err != nil {
		return StrokeRecord{}, err
	}

	if err := s.rdc.LPush(ctx, linesKey(room), payload).Err(); err != nil {
		return StrokeRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Book-keeping for the REST listing and the Postgres archiver.
	// Best-effort: a failure here never fails the append the client
	// was told about.
	if err := s.rdc.SAdd(ctx, activeRoomsKey, room).Err(); err != nil {
		zap.L().Warn("strokelog.sadd", zap.String("room", room), zap.Error(err))
	}
	if err := s.rdc.XAdd(ctx, &redis.XAddArgs{
		Stream: archiveStream,
		Values: []interface{}{"room", room, "id", id, "pointer", string(pointer)},
	}).Err(); err != nil {
		zap.L().Warn("strokelog.xadd", zap.String("room", room), zap.Error(err))
	}

	return rec, nil
}

// Replay returns the room's strokes oldest-first. Storage is a LIFO
// list, so the LRANGE result is reversed before returning; replaying
// newest-first would invert the visual stacking of overlapping strokes.
func (s *strokeLog) Replay(ctx context.Context, room string) ([]StrokeRecord, error) {
	raw, err := s.rdc.LRange(ctx, linesKey(room), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	recs := make([]StrokeRecord, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var rec StrokeRecord
		if err := json.Unmarshal([]byte(raw[i]), &rec); err != nil {
			zap.L().Warn("strokelog.decode", zap.String("room", room), zap.Error(err))
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *strokeLog) ActiveRooms(ctx context.Context) ([]string, error) {
	rooms, err := s.rdc.SMembers(ctx, activeRoomsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return rooms, nil
}
