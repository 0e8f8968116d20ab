package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MemoryStore 在内存中保留最近的调用记录，可选地追加写入本地 JSON 行文件。
type MemoryStore struct {
	mu       sync.RWMutex
	dataFile string
	entries  []Entry
}

// NewMemoryStore 创建内存记录仓库。dataDir 为空时不落盘。
func NewMemoryStore(dataDir string) (*MemoryStore, error) {
	store := &MemoryStore{}
	if dataDir == "" {
		return store, nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	store.dataFile = filepath.Join(dataDir, "journal.log")
	if err := store.loadFromDisk(); err != nil {
		return nil, err
	}
	return store, nil
}

// Save 记录一次调用，最新的记录排在最前。
func (m *MemoryStore) Save(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dataFile != "" {
		if err := m.appendToDisk(entry); err != nil {
			return err
		}
	}

	m.entries = append([]Entry{entry}, m.entries...)
	if len(m.entries) > MaxEntries {
		m.entries = m.entries[:MaxEntries]
	}
	return nil
}

// ListLatest 返回最近的记录，按时间倒序排列。
func (m *MemoryStore) ListLatest(_ context.Context, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.entries) {
		limit = len(m.entries)
	}
	results := make([]Entry, limit)
	copy(results, m.entries[:limit])
	return results, nil
}

// Close 实现 Store。
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) appendToDisk(entry Entry) error {
	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开调用日志失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("序列化调用记录失败: %w", err)
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入调用日志失败: %w", err)
	}
	return nil
}

func (m *MemoryStore) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取调用日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var restored []Entry
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		restored = append([]Entry{entry}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析调用日志失败: %w", err)
	}

	if len(restored) > MaxEntries {
		restored = restored[:MaxEntries]
	}
	m.entries = restored
	return nil
}
