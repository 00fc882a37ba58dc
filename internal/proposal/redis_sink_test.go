package proposal

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeRedisSetter struct {
	gotKey   string
	gotValue interface{}
	gotTTL   time.Duration
}

func (f *fakeRedisSetter) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.gotKey = key
	f.gotValue = value
	f.gotTTL = ttl
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func TestRedisSinkPublishSetsKey(t *testing.T) {
	fake := &fakeRedisSetter{}
	sink := NewRedisSink(fake, time.Minute)

	require.NoError(t, sink.Publish(State{Seq: 9}))
	require.Equal(t, "proposal:9", fake.gotKey)
	require.Equal(t, time.Minute, fake.gotTTL)
}

func TestRedisProposalKeyFormat(t *testing.T) {
	require.Equal(t, "proposal:42", RedisProposalKey(42))
}
