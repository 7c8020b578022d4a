package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"member/models"
)

const (
	addressKeyPrefix    = "member:addresses:user:"
	generationKeyPrefix = "member:addresses:gen:user:"
)

var errStaleGeneration = errors.New("address cache generation changed")

// 以 sorted set 快取使用者地址列表，score 為地址ID以維持建立順序
type AddressCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAddressCache(rdb *redis.Client, ttl time.Duration) *AddressCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AddressCache{rdb: rdb, ttl: ttl}
}

func addressKey(userID uint) string {
	return addressKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

func generationKey(userID uint) string {
	return generationKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// 目前的快取世代，每次 Invalidate 遞增，讀取資料庫前先取得
func (c *AddressCache) Generation(ctx context.Context, userID uint) (int64, error) {
	generation, err := c.rdb.Get(ctx, generationKey(userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("address cache generation: %w", err)
	}
	return generation, nil
}

// 快取不存在時 ok 為false
func (c *AddressCache) Get(ctx context.Context, userID uint) ([]models.Address, bool, error) {
	members, err := c.rdb.ZRange(ctx, addressKey(userID), 0, -1).Result()
	if err != nil {
		return nil, false, fmt.Errorf("address cache zrange: %w", err)
	}
	if len(members) == 0 {
		return nil, false, nil
	}

	addresses := make([]models.Address, 0, len(members))
	for _, member := range members {
		var address models.Address
		if err := json.Unmarshal([]byte(member), &address); err != nil {
			return nil, false, fmt.Errorf("address cache unmarshal: %w", err)
		}
		addresses = append(addresses, address)
	}
	return addresses, true, nil
}

// 覆寫整份列表，空列表不寫入；世代已變更時放棄寫入，避免舊資料蓋過 Invalidate
func (c *AddressCache) Set(ctx context.Context, userID uint, generation int64, addresses []models.Address) error {
	key := addressKey(userID)
	genKey := generationKey(userID)
	members := make([]redis.Z, 0, len(addresses))
	for _, address := range addresses {
		addressJSON, err := json.Marshal(address)
		if err != nil {
			return fmt.Errorf("address cache marshal: %w", err)
		}
		members = append(members, redis.Z{
			Score:  float64(address.ID),
			Member: addressJSON,
		})
	}

	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleGeneration
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			if len(members) > 0 {
				pipe.ZAdd(ctx, key, members...)
				pipe.Expire(ctx, key, c.ttl)
			}
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, errStaleGeneration) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("address cache set: %w", err)
	}
	return nil
}

// 刪除列表並遞增世代，讓進行中的 Set 失效
func (c *AddressCache) Invalidate(ctx context.Context, userID uint) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(userID))
		pipe.Del(ctx, addressKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("address cache invalidate: %w", err)
	}
	return nil
}
