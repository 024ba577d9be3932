package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takeymahesh06/silaiwala/internal/common/logger"
)

type stubQuoter struct {
	calls  int32
	result QuoteResult
	gate   chan struct{}
}

func (s *stubQuoter) FetchQuote(ctx context.Context, req QuoteRequest) QuoteResult {
	atomic.AddInt32(&s.calls, 1)
	if s.gate != nil {
		<-s.gate
	}
	return s.result
}

func (s *stubQuoter) Calls() int { return int(atomic.LoadInt32(&s.calls)) }

func successResult(price float64) QuoteResult {
	return QuoteResult{Status: StatusSuccess, ServiceID: 3, AreaID: 7, CalculatedPrice: &price}
}

func TestCachedQuoter_CachesSuccess(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	inner := &stubQuoter{result: successResult(850)}
	cq := NewCachedQuoter(inner, rdb, time.Minute, logger.NewTestLogger(t))
	req := BuildRequest(Selection{ServiceID: 3, AreaID: 7})

	first := cq.FetchQuote(context.Background(), req)
	second := cq.FetchQuote(context.Background(), req)

	require.True(t, first.OK())
	require.True(t, second.OK())
	assert.Equal(t, 850.0, *second.CalculatedPrice)
	assert.Equal(t, 1, inner.Calls())

	key, err := CacheKey(req)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	// A different selection is a different key.
	other := BuildRequest(Selection{ServiceID: 3, AreaID: 7, Urgency: UrgencyRush})
	cq.FetchQuote(context.Background(), other)
	assert.Equal(t, 2, inner.Calls())
}

func TestCachedQuoter_DoesNotCacheErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	inner := &stubQuoter{result: errorResult("boom")}
	cq := NewCachedQuoter(inner, rdb, time.Minute, logger.NewTestLogger(t))
	req := BuildRequest(Selection{ServiceID: 1, AreaID: 2})

	assert.Equal(t, "boom", cq.FetchQuote(context.Background(), req).Message)
	assert.Equal(t, "boom", cq.FetchQuote(context.Background(), req).Message)
	assert.Equal(t, 2, inner.Calls())
	assert.Empty(t, mr.Keys())
}

func TestCachedQuoter_IgnoresCorruptEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	req := BuildRequest(Selection{ServiceID: 1, AreaID: 2})
	key, _ := CacheKey(req)
	require.NoError(t, mr.Set(key, `{"status":"error","message":"stale"}`))

	inner := &stubQuoter{result: successResult(410)}
	res := NewCachedQuoter(inner, rdb, time.Minute, logger.NewTestLogger(t)).FetchQuote(context.Background(), req)

	require.True(t, res.OK())
	assert.Equal(t, 410.0, *res.CalculatedPrice)
	assert.Equal(t, 1, inner.Calls())
}

func TestCachedQuoter_CollapsesConcurrentCalls(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	inner := &stubQuoter{result: successResult(600), gate: make(chan struct{})}
	cq := NewCachedQuoter(inner, rdb, time.Minute, logger.NewTestLogger(t))
	req := BuildRequest(Selection{ServiceID: 5, AreaID: 9})

	const callers = 5
	var wg sync.WaitGroup
	results := make([]QuoteResult, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = cq.FetchQuote(context.Background(), req)
		}(i)
	}

	require.Eventually(t, func() bool { return inner.Calls() == 1 }, time.Second, 5*time.Millisecond)
	// Give the other callers time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(inner.gate)
	wg.Wait()

	assert.Equal(t, 1, inner.Calls())
	for _, r := range results {
		require.True(t, r.OK())
		assert.Equal(t, 600.0, *r.CalculatedPrice)
	}
}

func TestCachedQuoter_RedisFailuresFallThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	want := successResult(850)
	req := BuildRequest(Selection{ServiceID: 3, AreaID: 7})
	key, err := CacheKey(req)
	require.NoError(t, err)
	payload, err := json.Marshal(want)
	require.NoError(t, err)

	mock.ExpectGet(key).SetErr(errors.New("connection reset"))
	mock.ExpectSet(key, string(payload), 30*time.Second).SetErr(errors.New("connection reset"))

	inner := &stubQuoter{result: want}
	res := NewCachedQuoter(inner, db, 30*time.Second, logger.NewTestLogger(t)).FetchQuote(context.Background(), req)

	require.True(t, res.OK())
	assert.Equal(t, 850.0, *res.CalculatedPrice)
	assert.Equal(t, 1, inner.Calls())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedQuoter_HitFromRedisMock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	req := BuildRequest(Selection{ServiceID: 3, AreaID: 7})
	key, _ := CacheKey(req)
	mock.ExpectGet(key).SetVal(`{"status":"success","calculated_price":999}`)

	inner := &stubQuoter{result: successResult(1)}
	res := NewCachedQuoter(inner, db, time.Minute, logger.NewTestLogger(t)).FetchQuote(context.Background(), req)

	require.True(t, res.OK())
	assert.Equal(t, 999.0, *res.CalculatedPrice)
	assert.Equal(t, 0, inner.Calls())
	assert.NoError(t, mock.ExpectationsWereMet())
}
