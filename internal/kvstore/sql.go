// 本文件用于基于 SQL 表的键值存储实现，支持 sqlite 与 mysql
package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

type sqlDialect struct {
	driver      string
	createTable string
	upsert      string
	// usage 统计除指定键外的已用字节数，sqlite 的 LENGTH 对文本按字符计数，需要先转为 BLOB
	usage string
}

var sqlDialects = map[string]sqlDialect{
	"sqlite": {
		driver: "sqlite",
		createTable: `CREATE TABLE IF NOT EXISTS kv_entries (
			entry_key TEXT PRIMARY KEY,
			entry_value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		upsert: `INSERT INTO kv_entries(entry_key, entry_value, updated_at) VALUES(?, ?, ?)
			ON CONFLICT(entry_key) DO UPDATE SET entry_value = excluded.entry_value, updated_at = excluded.updated_at`,
		usage: `SELECT COALESCE(SUM(LENGTH(CAST(entry_key AS BLOB)) + LENGTH(CAST(entry_value AS BLOB))), 0)
			FROM kv_entries WHERE entry_key <> ?`,
	},
	"mysql": {
		driver: "mysql",
		createTable: `CREATE TABLE IF NOT EXISTS kv_entries (
			entry_key VARCHAR(191) NOT NULL PRIMARY KEY,
			entry_value LONGTEXT NOT NULL,
			updated_at BIGINT NOT NULL
		) DEFAULT CHARSET=utf8mb4`,
		upsert: `INSERT INTO kv_entries(entry_key, entry_value, updated_at) VALUES(?, ?, ?)
			ON DUPLICATE KEY UPDATE entry_value = VALUES(entry_value), updated_at = VALUES(updated_at)`,
		usage: `SELECT COALESCE(SUM(LENGTH(entry_key) + LENGTH(entry_value)), 0) FROM kv_entries WHERE entry_key <> ?`,
	},
}

// SQLStore 把每个键保存为 kv_entries 表中的一行
type SQLStore struct {
	mu         sync.Mutex
	db         *sql.DB
	dialect    string
	location   string
	quotaBytes int64
}

// NewSQLStore 打开数据库并确保表结构存在
func NewSQLStore(ctx context.Context, dialect, dsn string, quotaBytes int64) (*SQLStore, error) {
	name := strings.ToLower(strings.TrimSpace(dialect))
	d, ok := sqlDialects[name]
	if !ok {
		return nil, fmt.Errorf("不支持的 SQL 方言: %s", dialect)
	}
	cleaned := strings.TrimSpace(dsn)
	if cleaned == "" {
		return nil, fmt.Errorf("%s 存储 DSN 不能为空", name)
	}
	if name == "sqlite" {
		if err := ensureSQLiteDir(cleaned); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(d.driver, cleaned)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	if name == "sqlite" {
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("设置 WAL 模式失败: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	if _, err := db.ExecContext(ctx, d.createTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化 kv_entries 表失败: %w", err)
	}
	return &SQLStore{
		db:         db,
		dialect:    name,
		location:   redactDSN(cleaned),
		quotaBytes: quotaBytes,
	}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil {
		return "", false, ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return "", false, ErrClosed
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT entry_value FROM kv_entries WHERE entry_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("读取键值失败: %w", err)
	}
	return value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	if s == nil {
		return ErrClosed
	}
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}
	if s.quotaBytes > 0 {
		var used int64
		err := s.db.QueryRowContext(ctx, sqlDialects[s.dialect].usage, key).Scan(&used)
		if err != nil {
			return fmt.Errorf("统计存储用量失败: %w", err)
		}
		if err := checkQuota(s.quotaBytes, used, key, value); err != nil {
			return err
		}
	}
	if _, err := s.db.ExecContext(ctx, sqlDialects[s.dialect].upsert, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("写入键值失败: %w", err)
	}
	return nil
}

func (s *SQLStore) Remove(ctx context.Context, key string) error {
	if s == nil {
		return ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE entry_key = ?`, key); err != nil {
		return fmt.Errorf("删除键值失败: %w", err)
	}
	return nil
}

func (s *SQLStore) Keys(ctx context.Context) ([]string, error) {
	if s == nil {
		return nil, ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT entry_key FROM kv_entries ORDER BY entry_key`)
	if err != nil {
		return nil, fmt.Errorf("列出键失败: %w", err)
	}
	defer rows.Close()
	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("读取键失败: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *SQLStore) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLStore) Describe() Info {
	return Info{Backend: s.dialect, Location: s.location}
}

func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建数据库目录失败: %w", err)
	}
	return nil
}

// redactDSN 去掉 DSN 中的密码部分，例如 user:pass@tcp(...)
func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	cred := dsn[:at]
	if colon := strings.Index(cred, ":"); colon >= 0 {
		return cred[:colon] + ":***" + dsn[at:]
	}
	return dsn
}
