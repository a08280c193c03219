package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PingsAndInstruments(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	setsBefore := testutil.ToFloat64(redisRequestsTotal.WithLabelValues("set"))
	getErrsBefore := testutil.ToFloat64(redisErrorsTotal.WithLabelValues("get"))

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	_, err = client.Get(context.Background(), "missing").Result()
	require.ErrorIs(t, err, goredis.Nil)

	assert.Equal(t, setsBefore+1, testutil.ToFloat64(redisRequestsTotal.WithLabelValues("set")))
	assert.Equal(t, getErrsBefore, testutil.ToFloat64(redisErrorsTotal.WithLabelValues("get")), "a missing key is not an error")
}

func TestNew_UnreachableServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), Config{Addr: addr, MaxRetries: -1})
	assert.Error(t, err)
}

func TestObserve_CountsFailures(t *testing.T) {
	before := testutil.ToFloat64(redisErrorsTotal.WithLabelValues("hget"))
	observe("HGET", 0, assert.AnError)
	assert.Equal(t, before+1, testutil.ToFloat64(redisErrorsTotal.WithLabelValues("hget")))
}
