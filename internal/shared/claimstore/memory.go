// Package claimstore 提供声明存储抽象
//
// memory.go 提供进程内实现，用于测试和单机部署。
// 语义与 redis/etcd/postgres 适配器对齐，是各适配器的参照实现。
package claimstore

import (
	"context"
	"sync"
)

// ============================================================================
// MemoryStore - 进程内 ClaimStore 实现
// ============================================================================

// tuple 分区内索引键
type tuple struct {
	key   string
	token string // 值摘要或 owner，视索引而定
}

// memPartition 单个分区的两个索引
//
//	byValue: (key, value) -> owner        冲突检测的权威索引
//	byOwner: (key, owner) -> value        支持同 owner 改占新值 / 按 owner 释放
//	noOwner: (key, value) -> struct{}     无主模式独立命名空间
type memPartition struct {
	byValue map[tuple]string
	byOwner map[tuple]string
	noOwner map[tuple]struct{}
}

// MemoryStore 进程内声明存储
type MemoryStore struct {
	mu         sync.Mutex
	partitions map[string]*memPartition
}

// NewMemoryStore 创建进程内声明存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{partitions: make(map[string]*memPartition)}
}

var _ ClaimStore = (*MemoryStore)(nil)

func (s *MemoryStore) partition(name string) *memPartition {
	p, ok := s.partitions[name]
	if !ok {
		p = &memPartition{
			byValue: make(map[tuple]string),
			byOwner: make(map[tuple]string),
			noOwner: make(map[tuple]struct{}),
		}
		s.partitions[name] = p
	}
	return p
}

// Claim 为 owner 占用 (key, value)
func (s *MemoryStore) Claim(_ context.Context, key, value, owner, partition string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.partition(partition)
	vt := tuple{key, value}

	if holder, held := p.byValue[vt]; held {
		if holder == owner {
			return nil
		}
		return ErrAlreadyClaimed
	}

	// 同 owner 改占新值：先释放旧值
	ot := tuple{key, owner}
	if prev, held := p.byOwner[ot]; held {
		delete(p.byValue, tuple{key, prev})
	}
	p.byValue[vt] = owner
	p.byOwner[ot] = value
	return nil
}

// ClaimValue 无主模式占用 (key, value)
func (s *MemoryStore) ClaimValue(_ context.Context, key, value, partition string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.partition(partition)
	vt := tuple{key, value}
	if _, held := p.noOwner[vt]; held {
		return ErrAlreadyClaimed
	}
	p.noOwner[vt] = struct{}{}
	return nil
}

// Release 释放 owner 持有的 (key, value)
func (s *MemoryStore) Release(_ context.Context, key, value, owner, partition string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.partition(partition)
	vt := tuple{key, value}
	holder, held := p.byValue[vt]
	if !held {
		return nil // 幂等：不存在视为已释放
	}
	if holder != owner {
		return ErrClaimedByAnotherOwner
	}
	delete(p.byValue, vt)
	delete(p.byOwner, tuple{key, owner})
	return nil
}

// ReleaseByOwner 释放 owner 在 key 下持有的任何值
func (s *MemoryStore) ReleaseByOwner(_ context.Context, key, owner, partition string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.partition(partition)
	ot := tuple{key, owner}
	value, held := p.byOwner[ot]
	if !held {
		return nil
	}
	delete(p.byOwner, ot)
	delete(p.byValue, tuple{key, value})
	return nil
}

// ReleaseByValue 释放无主模式占用的 (key, value)
func (s *MemoryStore) ReleaseByValue(_ context.Context, key, value, partition string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.partition(partition).noOwner, tuple{key, value})
	return nil
}

// Close 关闭存储（进程内实现为空操作）
func (s *MemoryStore) Close() error {
	return nil
}

// ============================================================================
// 测试辅助
// ============================================================================

// HolderOf 返回 (key, value) 当前持有者，仅用于测试断言
func (s *MemoryStore) HolderOf(key, value, partition string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	holder, held := s.partition(partition).byValue[tuple{key, value}]
	return holder, held
}

// ValueHeld 返回无主模式下 (key, value) 是否被占用，仅用于测试断言
func (s *MemoryStore) ValueHeld(key, value, partition string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, held := s.partition(partition).noOwner[tuple{key, value}]
	return held
}

// ClaimCount 返回分区内声明总数（含无主模式），仅用于测试断言
func (s *MemoryStore) ClaimCount(partition string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.partition(partition)
	return len(p.byValue) + len(p.noOwner)
}
