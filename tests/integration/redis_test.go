package integration

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/vadimbarashkov/shortlink/internal/cache"
	"github.com/vadimbarashkov/shortlink/internal/lock"
	pkgredis "github.com/vadimbarashkov/shortlink/pkg/redis"
)

type RedisTestSuite struct {
	suite.Suite
	container *tcredis.RedisContainer
	client    *redis.Client
}

func (suite *RedisTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	suite.Require().NoError(err)
	suite.container = container

	connStr, err := container.ConnectionString(ctx)
	suite.Require().NoError(err)

	addr := strings.TrimPrefix(connStr, "redis://")

	client, err := pkgredis.New(ctx, addr, "", 0)
	suite.Require().NoError(err)
	suite.client = client
}

func (suite *RedisTestSuite) TearDownSuite() {
	ctx := context.Background()

	if suite.client != nil {
		suite.Require().NoError(suite.client.Close())
	}
	if suite.container != nil {
		suite.Require().NoError(suite.container.Terminate(ctx))
	}
}

func (suite *RedisTestSuite) TearDownSubTest() {
	suite.Require().NoError(suite.client.FlushAll(context.Background()).Err())
}

func (suite *RedisTestSuite) TestLock() {
	ctx := context.Background()

	suite.Run("second acquisition is refused while held", func() {
		l := lock.New(suite.client)

		ok, err := l.TryAcquire(ctx, "shortLinkCodeLock:abc123", time.Minute)
		suite.NoError(err)
		suite.True(ok)

		ok, err = l.TryAcquire(ctx, "shortLinkCodeLock:abc123", time.Minute)
		suite.NoError(err)
		suite.False(ok)
	})

	suite.Run("independent keys do not contend", func() {
		l := lock.New(suite.client)

		ok, err := l.TryAcquire(ctx, "shortLinkCodeLock:abc123", time.Minute)
		suite.NoError(err)
		suite.True(ok)

		ok, err = l.TryAcquire(ctx, "shortLinkCodeLock:xyz789", time.Minute)
		suite.NoError(err)
		suite.True(ok)
	})

	suite.Run("release frees the key", func() {
		l := lock.New(suite.client)

		ok, err := l.TryAcquire(ctx, "shortLinkCodeLock:abc123", time.Minute)
		suite.NoError(err)
		suite.True(ok)

		released, err := l.Release(ctx, "shortLinkCodeLock:abc123")
		suite.NoError(err)
		suite.True(released)

		ok, err = l.TryAcquire(ctx, "shortLinkCodeLock:abc123", time.Minute)
		suite.NoError(err)
		suite.True(ok)
	})

	suite.Run("releasing an unheld key is not an error", func() {
		l := lock.New(suite.client)

		released, err := l.Release(ctx, "shortLinkCodeLock:never-held")
		suite.NoError(err)
		suite.False(released)
	})

	suite.Run("expired lock becomes acquirable again", func() {
		l := lock.New(suite.client)

		ok, err := l.TryAcquire(ctx, "shortLinkCodeLock:abc123", 100*time.Millisecond)
		suite.NoError(err)
		suite.True(ok)

		suite.Eventually(func() bool {
			ok, err := l.TryAcquire(ctx, "shortLinkCodeLock:abc123", time.Minute)
			return err == nil && ok
		}, 2*time.Second, 50*time.Millisecond)
	})
}

func (suite *RedisTestSuite) TestCache() {
	ctx := context.Background()

	suite.Run("miss populates and hit skips populate", func() {
		c := cache.New(suite.client, time.Minute)
		populates := 0

		populate := func(ctx context.Context) (string, error) {
			populates++
			return "https://example.com/x", nil
		}

		val, err := c.GetOrCreate(ctx, "shortLink:abc123", populate)
		suite.NoError(err)
		suite.Equal("https://example.com/x", val)
		suite.Equal(1, populates)

		val, err = c.GetOrCreate(ctx, "shortLink:abc123", populate)
		suite.NoError(err)
		suite.Equal("https://example.com/x", val)
		suite.Equal(1, populates)
	})

	suite.Run("empty string is cached as a value", func() {
		c := cache.New(suite.client, time.Minute)
		populates := 0

		populate := func(ctx context.Context) (string, error) {
			populates++
			return "", nil
		}

		val, err := c.GetOrCreate(ctx, "shortLink:missing", populate)
		suite.NoError(err)
		suite.Empty(val)

		val, err = c.GetOrCreate(ctx, "shortLink:missing", populate)
		suite.NoError(err)
		suite.Empty(val)
		suite.Equal(1, populates)
	})

	suite.Run("delete evicts the entry", func() {
		c := cache.New(suite.client, time.Minute)
		populates := 0

		populate := func(ctx context.Context) (string, error) {
			populates++
			return "https://example.com/x", nil
		}

		_, err := c.GetOrCreate(ctx, "shortLink:abc123", populate)
		suite.NoError(err)

		suite.NoError(c.Delete(ctx, "shortLink:abc123"))

		_, err = c.GetOrCreate(ctx, "shortLink:abc123", populate)
		suite.NoError(err)
		suite.Equal(2, populates)
	})

	suite.Run("deleting an absent key is not an error", func() {
		c := cache.New(suite.client, time.Minute)

		suite.NoError(c.Delete(ctx, "shortLink:never-cached"))
	})

	suite.Run("entry expires after its ttl", func() {
		c := cache.New(suite.client, 100*time.Millisecond)
		populates := 0

		populate := func(ctx context.Context) (string, error) {
			populates++
			return "https://example.com/x", nil
		}

		_, err := c.GetOrCreate(ctx, "shortLink:abc123", populate)
		suite.NoError(err)

		suite.Eventually(func() bool {
			_, err := c.GetOrCreate(ctx, "shortLink:abc123", populate)
			return err == nil && populates == 2
		}, 2*time.Second, 50*time.Millisecond)
	})
}

func TestRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests")
	}

	suite.Run(t, new(RedisTestSuite))
}
