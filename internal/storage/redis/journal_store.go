package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"OpenMCP-Arbitrum/internal/journal"

	goredis "github.com/redis/go-redis/v9"
)

// Config 描述 Redis 连接参数。
type Config struct {
	Address  string
	Password string
	DB       int
	Key      string
}

const defaultKey = "arbitrum:journal"

// JournalStore 使用 Redis list 保存最近的调用记录，最新记录位于表头。
type JournalStore struct {
	client goredis.UniversalClient
	key    string
}

// NewJournalStore 创建并探测 Redis 连接。
func NewJournalStore(ctx context.Context, cfg Config) (*JournalStore, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return NewJournalStoreWithClient(client, cfg.Key), nil
}

// NewJournalStoreWithClient 复用已有客户端。
func NewJournalStoreWithClient(client goredis.UniversalClient, key string) *JournalStore {
	if key == "" {
		key = defaultKey
	}
	return &JournalStore{client: client, key: key}
}

// Save 以 LPUSH + LTRIM 的方式写入并截断列表。
func (s *JournalStore) Save(ctx context.Context, entry journal.Entry) error {
	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("序列化调用记录失败: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LPush(ctx, s.key, encoded)
		pipe.LTrim(ctx, s.key, 0, journal.MaxEntries-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("Redis 写入调用记录失败: %w", err)
	}
	return nil
}

// ListLatest 读取最近的 limit 条记录。
func (s *JournalStore) ListLatest(ctx context.Context, limit int) ([]journal.Entry, error) {
	if limit <= 0 || limit > journal.MaxEntries {
		limit = journal.MaxEntries
	}
	values, err := s.client.LRange(ctx, s.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("Redis 读取调用记录失败: %w", err)
	}
	return decodeEntries(values), nil
}

// Close 关闭客户端。
func (s *JournalStore) Close() error {
	return s.client.Close()
}

func decodeEntries(values []string) []journal.Entry {
	entries := make([]journal.Entry, 0, len(values))
	for _, value := range values {
		var entry journal.Entry
		if err := json.Unmarshal([]byte(value), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

var _ journal.Store = (*JournalStore)(nil)
