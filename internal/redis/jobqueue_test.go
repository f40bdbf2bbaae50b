package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel/internal/notification"
)

func testJob() notification.Job {
	return notification.Job{
		ID:         "job-1",
		Kind:       notification.KindPaymentConfirmation,
		BookingID:  "booking-1",
		PaymentID:  "payment-1",
		Recipient:  "guest@example.com",
		Attempt:    1,
		EnqueuedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func encode(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestJobQueue_Enqueue(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewJobQueue(db)
	job := testJob()

	mock.ExpectLPush(readyKey, encode(t, job)).SetVal(1)

	require.NoError(t, q.Enqueue(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_DequeueMovesToProcessing(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewJobQueue(db)
	job := testJob()
	raw := encode(t, job)

	mock.ExpectBLMove(readyKey, processingKey, "RIGHT", "LEFT", time.Second).SetVal(raw)

	d, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, job, d.Job)
	assert.Equal(t, raw, d.Receipt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_DequeueTimeout(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewJobQueue(db)

	mock.ExpectBLMove(readyKey, processingKey, "RIGHT", "LEFT", time.Second).RedisNil()

	d, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_Ack(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewJobQueue(db)
	d := &notification.Delivery{Job: testJob(), Receipt: encode(t, testJob())}

	mock.ExpectLRem(processingKey, 1, d.Receipt).SetVal(1)

	require.NoError(t, q.Ack(context.Background(), d))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_RetrySchedulesNextAttempt(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewJobQueue(db)
	d := &notification.Delivery{Job: testJob(), Receipt: encode(t, testJob())}
	at := time.Date(2024, 6, 1, 12, 0, 2, 0, time.UTC)

	next := testJob()
	next.Attempt = 2
	mock.ExpectZAdd(delayedKey, redis.Z{Score: float64(at.UnixMilli()), Member: encode(t, next)}).SetVal(1)
	mock.ExpectLRem(processingKey, 1, d.Receipt).SetVal(1)

	require.NoError(t, q.Retry(context.Background(), d, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_PromoteDue(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewJobQueue(db)
	now := time.Date(2024, 6, 1, 12, 0, 5, 0, time.UTC)

	mock.ExpectZRangeByScore(delayedKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "1717243205000",
		Count: promoteBatch,
	}).SetVal([]string{"a", "b"})
	mock.ExpectEval(promoteScript, []string{delayedKey, readyKey}, "a").SetVal(int64(1))
	// Another promoter already took "b".
	mock.ExpectEval(promoteScript, []string{delayedKey, readyKey}, "b").SetVal(int64(0))

	n, err := q.PromoteDue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_PromoteDueKeepsJobWhenMoveFails(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewJobQueue(db)
	now := time.Date(2024, 6, 1, 12, 0, 5, 0, time.UTC)
	due := &redis.ZRangeBy{Min: "-inf", Max: "1717243205000", Count: promoteBatch}

	mock.ExpectZRangeByScore(delayedKey, due).SetVal([]string{"job-a"})
	mock.ExpectEval(promoteScript, []string{delayedKey, readyKey}, "job-a").SetErr(errors.New("connection reset"))

	n, err := q.PromoteDue(context.Background(), now)
	require.Error(t, err)
	assert.Zero(t, n)

	// The failed move left job-a in the delayed set, so the next tick finds it.
	mock.ExpectZRangeByScore(delayedKey, due).SetVal([]string{"job-a"})
	mock.ExpectEval(promoteScript, []string{delayedKey, readyKey}, "job-a").SetVal(int64(1))

	n, err = q.PromoteDue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_DequeueUnreadableGoesToDeadList(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewJobQueue(db)

	mock.ExpectBLMove(readyKey, processingKey, "RIGHT", "LEFT", time.Second).SetVal("not-json")
	mock.ExpectLPush(deadKey, "not-json").SetVal(1)
	mock.ExpectLRem(processingKey, 1, "not-json").SetVal(1)

	d, err := q.Dequeue(context.Background(), time.Second)
	require.Error(t, err)
	assert.Nil(t, d)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_DequeueUnreadableStaysInFlightWhenBuryFails(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewJobQueue(db)

	mock.ExpectBLMove(readyKey, processingKey, "RIGHT", "LEFT", time.Second).SetVal("not-json")
	mock.ExpectLPush(deadKey, "not-json").SetErr(errors.New("connection reset"))

	d, err := q.Dequeue(context.Background(), time.Second)
	require.ErrorContains(t, err, "bury unreadable job")
	assert.Nil(t, d)
	// No LREM was issued, so the entry is still recoverable from processing.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_RecoverRequeuesInFlight(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewJobQueue(db)

	mock.ExpectLMove(processingKey, readyKey, "RIGHT", "RIGHT").SetVal("a")
	mock.ExpectLMove(processingKey, readyKey, "RIGHT", "RIGHT").SetVal("b")
	mock.ExpectLMove(processingKey, readyKey, "RIGHT", "RIGHT").RedisNil()

	n, err := q.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
