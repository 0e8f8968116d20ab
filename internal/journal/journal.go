// Package journal 记录每一次动作调用的结果，供 API 查询与审计使用。
package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status 表示一次调用的最终状态。
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// MaxEntries 是内存与 Redis 实现保留的最大记录数。
const MaxEntries = 512

// Entry 描述一次动作调用。
type Entry struct {
	ID         string          `json:"id"`
	Action     string          `json:"action"`
	Source     string          `json:"source,omitempty"`
	Message    string          `json:"message,omitempty"`
	Params     json.RawMessage `json:"params,omitempty"`
	Status     Status          `json:"status"`
	Code       string          `json:"code,omitempty"`
	Text       string          `json:"text"`
	Content    json.RawMessage `json:"content,omitempty"`
	Chain      string          `json:"chain,omitempty"`
	TxHash     string          `json:"txHash,omitempty"`
	DurationMS int64           `json:"durationMs"`
	CreatedAt  int64           `json:"createdAt"`
}

// NewEntry 生成带唯一 ID 与时间戳的记录。
func NewEntry(action string) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Action:    action,
		CreatedAt: time.Now().Unix(),
	}
}

// Store 抽象调用记录的持久化接口。
type Store interface {
	Save(ctx context.Context, entry Entry) error
	ListLatest(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}
