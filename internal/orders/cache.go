package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/poscart/fulfillment/internal/redisx"
)

// StatusCache fronts the status polling path. Misses fall through to the
// repository; transitions refresh the entry. Best effort only.
type StatusCache struct {
	RDB *redis.Client
}

func (c *StatusCache) Get(ctx context.Context, orderID string) (Status, bool) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	raw, err := c.RDB.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	var resp StatusResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return "", false
	}
	return resp.Status, true
}

func (c *StatusCache) Set(ctx context.Context, orderID string, status Status) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	b, _ := json.Marshal(StatusResponse{OrderID: orderID, Status: status})
	_ = c.RDB.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}
