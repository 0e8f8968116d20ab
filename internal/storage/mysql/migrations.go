package mysql

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"OpenMCP-Arbitrum/deploy/migrations"
)

var embeddedMigrations fs.FS = migrations.Files

const (
	createMigrationTableSQL = `CREATE TABLE IF NOT EXISTS journal_schema_migrations (
    version VARCHAR(32) NOT NULL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    checksum CHAR(64) NOT NULL,
    applied_at BIGINT NOT NULL
)`
	selectMigrationsSQL = `SELECT version, checksum FROM journal_schema_migrations`
	insertMigrationSQL  = `INSERT INTO journal_schema_migrations (version, name, checksum, applied_at) VALUES (?, ?, ?, ?)`
)

type migrationFile struct {
	version    string
	name       string
	checksum   string
	statements []string
}

// migrator 按版本顺序执行内嵌的 SQL 迁移，每个版本一个事务。
type migrator struct {
	db  *sql.DB
	now func() time.Time
}

func (s *JournalRepository) runMigrations(ctx context.Context) error {
	return (&migrator{db: s.db, now: time.Now}).run(ctx)
}

func (m *migrator) run(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createMigrationTableSQL); err != nil {
		return fmt.Errorf("创建迁移记录表失败: %w", err)
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	files, err := loadMigrationFiles()
	if err != nil {
		return err
	}
	for _, file := range files {
		sum, ok := applied[file.version]
		if !ok {
			if err := m.apply(ctx, file); err != nil {
				return err
			}
			continue
		}
		// 已执行的迁移文件不允许再修改。
		if sum != file.checksum {
			return fmt.Errorf("迁移 %s 已执行但内容发生变化", file.name)
		}
	}
	return nil
}

func (m *migrator) applied(ctx context.Context) (map[string]string, error) {
	rows, err := m.db.QueryContext(ctx, selectMigrationsSQL)
	if err != nil {
		return nil, fmt.Errorf("查询迁移记录失败: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var version, checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, fmt.Errorf("解析迁移记录失败: %w", err)
		}
		applied[version] = checksum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历迁移记录失败: %w", err)
	}
	return applied, nil
}

func (m *migrator) apply(ctx context.Context, file migrationFile) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启迁移事务失败: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range file.statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("执行迁移 %s 失败: %w", file.name, err)
		}
	}
	if _, err = tx.ExecContext(ctx, insertMigrationSQL, file.version, file.name, file.checksum, m.now().Unix()); err != nil {
		return fmt.Errorf("记录迁移版本失败: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("提交迁移事务失败: %w", err)
	}
	return nil
}

func loadMigrationFiles() ([]migrationFile, error) {
	names, err := fs.Glob(embeddedMigrations, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("读取迁移目录失败: %w", err)
	}

	files := make([]migrationFile, 0, len(names))
	seen := make(map[string]string, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(embeddedMigrations, name)
		if err != nil {
			return nil, fmt.Errorf("读取迁移文件 %s 失败: %w", name, err)
		}
		statements := splitSQLStatements(string(content))
		if len(statements) == 0 {
			continue
		}
		version := parseMigrationVersion(name)
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("迁移 %s 与 %s 版本号重复", name, other)
		}
		seen[version] = name
		files = append(files, migrationFile{
			version:    version,
			name:       name,
			checksum:   checksum(content),
			statements: statements,
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

func checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// splitSQLStatements 按分号拆分语句并忽略 "--" 行注释。
func splitSQLStatements(content string) []string {
	var cleaned strings.Builder
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		cleaned.WriteString(line)
		cleaned.WriteByte('\n')
	}

	var statements []string
	for _, stmt := range strings.Split(cleaned.String(), ";") {
		if trimmed := strings.TrimSpace(stmt); trimmed != "" {
			statements = append(statements, trimmed)
		}
	}
	return statements
}

func parseMigrationVersion(name string) string {
	name = strings.TrimSuffix(name, ".sql")
	if idx := strings.IndexRune(name, '_'); idx > 0 {
		return name[:idx]
	}
	return name
}
