package redisinbox

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

func openRedisForIntegrationTest(t *testing.T) *Repository {
	t.Helper()

	addr := strings.TrimSpace(os.Getenv("ROOMBOOK_REDIS_TEST_ADDR"))
	if addr == "" {
		addr = "localhost:6379"
	}
	client, err := Connect(context.Background(), addr, "", 0)
	if err != nil {
		t.Skipf("redis is not available for integration tests: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	prefix := "roombook:test:" + uuid.NewString() + ":"
	t.Cleanup(func() {
		keys, _ := client.Keys(context.Background(), prefix+"*").Result()
		if len(keys) > 0 {
			_ = client.Del(context.Background(), keys...).Err()
		}
	})
	return New(client, WithKeyPrefix(prefix), WithMaxLen(3))
}

func TestRepository_RedisAppendListAndTrim(t *testing.T) {
	repo := openRedisForIntegrationTest(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 9, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Append(ctx, domain.Notification{
			Recipient:     "s001",
			Audience:      domain.AudienceRequester,
			ReservationID: "r1",
			Kind:          domain.EventModified,
			Subject:       string(rune('a' + i)),
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}))
	}

	box, err := repo.List(ctx, "s001", 0)
	require.NoError(t, err)
	require.Len(t, box, 3, "inbox is trimmed to max length")
	require.Equal(t, "d", box[0].Subject)
	require.Equal(t, "b", box[2].Subject)
	require.True(t, box[0].CreatedAt.Equal(base.Add(3*time.Minute)))

	limited, err := repo.List(ctx, "s001", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)

	empty, err := repo.List(ctx, "nobody", 0)
	require.NoError(t, err)
	require.Empty(t, empty)
}
