// Package postgres PostgreSQL 声明存储实现
//
// 单表双模式布局：
//
//	claims(partition, claim_key, mode, value_digest, value, owner, claimed_at)
//	  mode = 'o' 带 owner 声明；mode = 'n' 无主模式（owner 为 NULL）
//	  主键 (partition, claim_key, mode, value_digest) 即值索引
//	  部分唯一索引 (partition, claim_key, owner) WHERE mode='o' 即 owner 索引
//
// 冲突检测依赖主键约束 + ON CONFLICT DO NOTHING，改占旧值释放与新值插入
// 放在同一事务内，失败整体回滚。
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"claimd/internal/shared/claimstore"
)

// Store PostgreSQL 声明存储
type Store struct {
	db *sql.DB
}

var _ claimstore.ClaimStore = (*Store)(nil)

// NewStore 创建 PostgreSQL 声明存储
func NewStore(databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	log.Printf("[Postgres] Connected")
	return &Store{db: db}, nil
}

// NewStoreFromDB 从已有的 *sql.DB 创建声明存储
func NewStoreFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema 创建声明表（幂等）
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS claims (
    partition    TEXT NOT NULL,
    claim_key    TEXT NOT NULL,
    mode         CHAR(1) NOT NULL,
    value_digest TEXT NOT NULL,
    value        TEXT NOT NULL,
    owner        TEXT,
    claimed_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (partition, claim_key, mode, value_digest)
);
CREATE UNIQUE INDEX IF NOT EXISTS claims_owner_idx
    ON claims (partition, claim_key, owner) WHERE mode = 'o';`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create claims schema: %w", err)
	}
	return nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// DB 返回底层数据库连接（仅用于测试）
func (s *Store) DB() *sql.DB {
	return s.db
}

// Claim 为 owner 占用 (key, value)
func (s *Store) Claim(ctx context.Context, key, value, owner, partition string) error {
	digest := claimstore.ValueDigest(value)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres claim failed: %w", err)
	}
	defer tx.Rollback()

	// 同 owner 改占新值：先释放其旧值
	_, err = tx.ExecContext(ctx,
		`DELETE FROM claims
		  WHERE partition = $1 AND claim_key = $2 AND mode = 'o'
		    AND owner = $3 AND value_digest <> $4`,
		partition, key, owner, digest)
	if err != nil {
		return fmt.Errorf("postgres claim failed: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO claims (partition, claim_key, mode, value_digest, value, owner)
		 VALUES ($1, $2, 'o', $3, $4, $5)
		 ON CONFLICT (partition, claim_key, mode, value_digest) DO NOTHING`,
		partition, key, digest, value, owner)
	if err != nil {
		return fmt.Errorf("postgres claim failed: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres claim failed: %w", err)
	}

	if inserted == 0 {
		// 已有声明：同 owner 幂等成功，否则冲突
		var holder string
		err = tx.QueryRowContext(ctx,
			`SELECT owner FROM claims
			  WHERE partition = $1 AND claim_key = $2 AND mode = 'o' AND value_digest = $3`,
			partition, key, digest).Scan(&holder)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// 插入与查询之间被释放，按冲突处理让上层重试
				return claimstore.ErrAlreadyClaimed
			}
			return fmt.Errorf("postgres claim failed: %w", err)
		}
		if holder != owner {
			return claimstore.ErrAlreadyClaimed
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres claim failed: %w", err)
	}
	return nil
}

// ClaimValue 无主模式占用 (key, value)
func (s *Store) ClaimValue(ctx context.Context, key, value, partition string) error {
	digest := claimstore.ValueDigest(value)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO claims (partition, claim_key, mode, value_digest, value)
		 VALUES ($1, $2, 'n', $3, $4)
		 ON CONFLICT (partition, claim_key, mode, value_digest) DO NOTHING`,
		partition, key, digest, value)
	if err != nil {
		return fmt.Errorf("postgres claim failed: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres claim failed: %w", err)
	}
	if inserted == 0 {
		return claimstore.ErrAlreadyClaimed
	}
	return nil
}

// Release 释放 owner 持有的 (key, value)
func (s *Store) Release(ctx context.Context, key, value, owner, partition string) error {
	digest := claimstore.ValueDigest(value)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM claims
		  WHERE partition = $1 AND claim_key = $2 AND mode = 'o'
		    AND value_digest = $3 AND owner = $4`,
		partition, key, digest, owner)
	if err != nil {
		return fmt.Errorf("postgres release failed: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres release failed: %w", err)
	}
	if deleted > 0 {
		return nil
	}

	// 没删到：声明不存在（幂等成功）或被其他 owner 持有
	var holder string
	err = s.db.QueryRowContext(ctx,
		`SELECT owner FROM claims
		  WHERE partition = $1 AND claim_key = $2 AND mode = 'o' AND value_digest = $3`,
		partition, key, digest).Scan(&holder)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("postgres release failed: %w", err)
	}
	return claimstore.ErrClaimedByAnotherOwner
}

// ReleaseByOwner 释放 owner 在 key 下持有的任何值
func (s *Store) ReleaseByOwner(ctx context.Context, key, owner, partition string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM claims
		  WHERE partition = $1 AND claim_key = $2 AND mode = 'o' AND owner = $3`,
		partition, key, owner)
	if err != nil {
		return fmt.Errorf("postgres release failed: %w", err)
	}
	return nil
}

// ReleaseByValue 释放无主模式占用的 (key, value)
func (s *Store) ReleaseByValue(ctx context.Context, key, value, partition string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM claims
		  WHERE partition = $1 AND claim_key = $2 AND mode = 'n' AND value_digest = $3`,
		partition, key, claimstore.ValueDigest(value))
	if err != nil {
		return fmt.Errorf("postgres release failed: %w", err)
	}
	return nil
}
