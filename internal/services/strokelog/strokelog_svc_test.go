package strokelog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectAppend(mock redismock.ClientMock, room string, id int64, pointer json.RawMessage) {
	payload, _ := json.Marshal(StrokeRecord{ID: uint64(id), Pointer: pointer})

	mock.ExpectIncr("strokes:" + room + ":id").SetVal(id)
	mock.ExpectLPush("strokes:"+room, payload).SetVal(id)
	mock.ExpectSAdd("rooms:active", room).SetVal(1)
	mock.ExpectXAdd(&redis.XAddArgs{
		Stream: "strokes_stream",
		Values: []interface{}{"room", room, "id", id, "pointer", string(pointer)},
	}).SetVal("1-0")
}

func TestAppend(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := New(db)

	pointer := json.RawMessage(`{"x":1,"y":2}`)
	expectAppend(mock, "r1", 1, pointer)

	rec, err := svc.Append(context.Background(), "r1", pointer)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.ID)
	assert.JSONEq(t, `{"x":1,"y":2}`, string(rec.Pointer))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_IDsAreDistinctPerRoom(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := New(db)

	pointer := json.RawMessage(`{"x":0,"y":0}`)
	expectAppend(mock, "r1", 1, pointer)
	expectAppend(mock, "r1", 2, pointer)
	expectAppend(mock, "r2", 1, pointer)

	rec1, err := svc.Append(context.Background(), "r1", pointer)
	require.NoError(t, err)
	rec2, err := svc.Append(context.Background(), "r1", pointer)
	require.NoError(t, err)
	other, err := svc.Append(context.Background(), "r2", pointer)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), rec1.ID)
	assert.Equal(t, uint64(2), rec2.ID)
	assert.Equal(t, uint64(1), other.ID, "counters are per room")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_StoreDown(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := New(db)

	mock.ExpectIncr("strokes:r1:id").SetErr(errors.New("connection refused"))

	_, err := svc.Append(context.Background(), "r1", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestReplay_ReversesStorageOrder(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := New(db)

	// LPUSH storage is newest-first; replay must come back oldest-first.
	mock.ExpectLRange("strokes:r1", 0, -1).SetVal([]string{
		`{"id":3,"pointer":{"x":3}}`,
		`{"id":2,"pointer":{"x":2}}`,
		`{"id":1,"pointer":{"x":1}}`,
	})

	recs, err := svc.Replay(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, uint64(1), recs[0].ID)
	assert.Equal(t, uint64(2), recs[1].ID)
	assert.Equal(t, uint64(3), recs[2].ID)
}

func TestReplay_SkipsUndecodableEntries(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := New(db)

	mock.ExpectLRange("strokes:r1", 0, -1).SetVal([]string{
		`{"id":2,"pointer":{"x":2}}`,
		`not json`,
		`{"id":1,"pointer":{"x":1}}`,
	})

	recs, err := svc.Replay(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, uint64(1), recs[0].ID)
	assert.Equal(t, uint64(2), recs[1].ID)
}

func TestReplay_EmptyRoom(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := New(db)

	mock.ExpectLRange("strokes:fresh", 0, -1).SetVal([]string{})

	recs, err := svc.Replay(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestReplay_StoreDown(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := New(db)

	mock.ExpectLRange("strokes:r1", 0, -1).SetErr(errors.New("connection refused"))

	_, err := svc.Replay(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestActiveRooms(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := New(db)

	mock.ExpectSMembers("rooms:active").SetVal([]string{"r1", "r2"})

	rooms, err := svc.ActiveRooms(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r1", "r2"}, rooms)
}
