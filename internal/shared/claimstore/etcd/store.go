// Package etcd etcd 声明存储实现
package etcd

import (
	"context"
	"fmt"
	"log"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Store etcd 声明存储客户端
type Store struct {
	client *clientv3.Client
	prefix string
}

// Config etcd 配置
type Config struct {
	Endpoints   []string
	DialTimeout time.Duration
	Prefix      string
}

// NewStore 创建 etcd 声明存储客户端
func NewStore(cfg Config) (*Store, error) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "/claims"
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err = client.Status(ctx, cfg.Endpoints[0])
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("etcd health check failed: %w", err)
	}

	log.Printf("[etcd] Connected to %v", cfg.Endpoints)
	return &Store{
		client: client,
		prefix: cfg.Prefix,
	}, nil
}

// Close 关闭连接
func (s *Store) Close() error {
	return s.client.Close()
}

// Client 返回底层 etcd 客户端
func (s *Store) Client() *clientv3.Client {
	return s.client
}

// Prefix 返回 key 前缀
func (s *Store) Prefix() string {
	return s.prefix
}
