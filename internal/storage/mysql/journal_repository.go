package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"OpenMCP-Arbitrum/internal/journal"
)

// JournalRepository 使用 MySQL 存储动作调用记录。
type JournalRepository struct {
	db *sql.DB
}

// NewJournalRepository 创建连接池并执行未应用的迁移。
func NewJournalRepository(ctx context.Context, cfg Config) (*JournalRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repo := &JournalRepository{db: db}
	if err := repo.runMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

const insertEntrySQL = `INSERT INTO action_journal
    (id, action, source, message, params, status, code, text, content, chain, tx_hash, duration_ms, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectEntriesSQL = `SELECT id, action, source, message, params, status, code, text, content, chain, tx_hash, duration_ms, created_at
    FROM action_journal ORDER BY created_at DESC, id DESC LIMIT ?`

// Save 将调用记录写入 MySQL。
func (s *JournalRepository) Save(ctx context.Context, entry journal.Entry) error {
	if _, err := s.db.ExecContext(ctx, insertEntrySQL,
		entry.ID,
		entry.Action,
		entry.Source,
		entry.Message,
		nullableJSON(entry.Params),
		string(entry.Status),
		entry.Code,
		entry.Text,
		nullableJSON(entry.Content),
		entry.Chain,
		entry.TxHash,
		entry.DurationMS,
		entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("写入 MySQL 失败: %w", err)
	}
	return nil
}

// ListLatest 查询最近的若干条调用记录。
func (s *JournalRepository) ListLatest(ctx context.Context, limit int) ([]journal.Entry, error) {
	if limit <= 0 || limit > journal.MaxEntries {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, selectEntriesSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("查询调用记录失败: %w", err)
	}
	defer rows.Close()

	var entries []journal.Entry
	for rows.Next() {
		var (
			entry           journal.Entry
			status          string
			params, content sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.Source, &entry.Message, &params, &status, &entry.Code,
			&entry.Text, &content, &entry.Chain, &entry.TxHash, &entry.DurationMS, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("解析调用记录失败: %w", err)
		}
		entry.Status = journal.Status(status)
		if params.Valid {
			entry.Params = json.RawMessage(params.String)
		}
		if content.Valid {
			entry.Content = json.RawMessage(content.String)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历调用记录失败: %w", err)
	}
	return entries, nil
}

// Close 关闭底层数据库连接。
func (s *JournalRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

var _ journal.Store = (*JournalRepository)(nil)
