package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/iabetor/sentiscope/internal/logger"
)

// DB 是 sentiscope 的 SQLite 数据库连接，保存分析历史。
type DB struct {
	*sql.DB
	path string
}

// Open 打开或创建数据库。
// dbPath 为空时使用默认路径 ~/.sentiscope/sentiscope.db。
func Open(dbPath string) (*DB, error) {
	if dbPath == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			dbPath = filepath.Join(home, ".sentiscope", "sentiscope.db")
		} else {
			dbPath = "./sentiscope.db"
		}
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	// WAL 模式下 serve 与 history 命令可以同时读写
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 WAL 模式失败: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("启用外键约束失败: %w", err)
	}
	// PRAGMA 是连接级别的，限制为单连接保证外键约束始终生效
	db.SetMaxOpenConns(1)

	logger.Infof("[database] 数据库已打开: %s", dbPath)
	return &DB{DB: db, path: dbPath}, nil
}

// Path 返回数据库文件路径。
func (db *DB) Path() string {
	return db.path
}

// Migrate 创建分析历史相关的表，可重复执行。
func (db *DB) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS analyses (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			variant TEXT NOT NULL,
			sentence_count INTEGER NOT NULL,
			transitions INTEGER NOT NULL,
			stats TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			elapsed_ms INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS analysis_records (
			analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			sentence TEXT NOT NULL,
			label TEXT NOT NULL,
			confidence REAL NOT NULL,
			PRIMARY KEY (analysis_id, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}
	}
	logger.Info("[database] 数据库迁移完成")
	return nil
}

// Close 关闭数据库连接。
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}
