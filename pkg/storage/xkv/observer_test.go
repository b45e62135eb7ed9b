package xkv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/omeyang/zencache/pkg/observability/xmetrics"
)

// expiringObserver 同时实现 Observer 与 ExpiredRecorder。
type expiringObserver struct {
	*MockObserver
	*MockExpiredRecorder
}

func expectSpan(obs *MockObserver, span *MockSpan, operation string) *gomock.Call {
	return obs.EXPECT().
		Start(gomock.Any(), xmetrics.SpanOptions{Component: "xkv", Operation: operation, Kind: xmetrics.KindInternal}).
		DoAndReturn(func(ctx context.Context, _ xmetrics.SpanOptions) (context.Context, xmetrics.Span) {
			return ctx, span
		})
}

func TestObserver_SpanPerOperation(t *testing.T) {
	ctrl := gomock.NewController(t)
	obs := NewMockObserver(ctrl)
	span := NewMockSpan(ctrl)

	gomock.InOrder(
		expectSpan(obs, span, "set"),
		span.EXPECT().End(xmetrics.Result{}),
		expectSpan(obs, span, "get"),
		span.EXPECT().End(xmetrics.Result{Attrs: []xmetrics.Attr{xmetrics.Bool("found", true)}}),
	)

	c, _ := newTestCache(t, WithObserver(obs))
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", String("v")))
	_, ok := c.Get(ctx, "k")
	assert.True(t, ok)
}

func TestObserver_ErrorIsReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	obs := NewMockObserver(ctrl)
	span := NewMockSpan(ctrl)

	var results []xmetrics.Result
	obs.EXPECT().Start(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ xmetrics.SpanOptions) (context.Context, xmetrics.Span) {
			return ctx, span
		}).Times(2)
	span.EXPECT().End(gomock.Any()).Do(func(r xmetrics.Result) {
		results = append(results, r)
	}).Times(2)

	c, _ := newTestCache(t, WithObserver(obs))
	ctx := context.Background()
	_ = c.Set(ctx, "word", String("abc"))
	_, err := c.Incr(ctx, "word")
	require.ErrorIs(t, err, ErrNotInteger)

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrNotInteger)
}

func TestObserver_SweepRecordsExpired(t *testing.T) {
	ctrl := gomock.NewController(t)
	obs := expiringObserver{
		MockObserver:        NewMockObserver(ctrl),
		MockExpiredRecorder: NewMockExpiredRecorder(ctrl),
	}
	span := NewMockSpan(ctrl)

	obs.MockObserver.EXPECT().Start(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ xmetrics.SpanOptions) (context.Context, xmetrics.Span) {
			return ctx, span
		}).AnyTimes()
	span.EXPECT().End(gomock.Any()).AnyTimes()
	obs.MockExpiredRecorder.EXPECT().RecordExpired(gomock.Any(), "xkv", int64(2)).Times(1)

	c, clock := newClockCache(t, WithObserver(obs))
	ctx := context.Background()
	_ = c.MSet(ctx, map[string]Value{"a": String("1"), "b": String("2")})
	_, _ = c.Expire(ctx, "a", time.Second, ExpireAlways)
	_, _ = c.Expire(ctx, "b", time.Second, ExpireAlways)
	clock.Advance(2 * time.Second)

	assert.Equal(t, 2, c.Sweep(ctx))
	// 没有删除时不上报
	assert.Equal(t, 0, c.Sweep(ctx))
}

func TestObserver_NilSpanFallsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	obs := NewMockObserver(ctrl)
	obs.EXPECT().Start(gomock.Any(), gomock.Any()).Return(nil, nil)

	c, _ := newTestCache(t, WithObserver(obs))
	assert.Equal(t, "pong", c.Ping(context.Background()))
}
