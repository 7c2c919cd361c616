// Package claimstore 进程内声明存储测试
package claimstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// 基本声明/释放语义
// ============================================================================

// TestMemoryStore_ClaimAndConflict 验证占用与冲突检测
func TestMemoryStore_ClaimAndConflict(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Claim(ctx, "email", "a@x.com", "owner-a", DefaultPartition))

	// 其他 owner 占用同一值 → 冲突
	err := s.Claim(ctx, "email", "a@x.com", "owner-b", DefaultPartition)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	// 原持有者不受影响
	holder, held := s.HolderOf("email", "a@x.com", DefaultPartition)
	require.True(t, held)
	assert.Equal(t, "owner-a", holder)
}

// TestMemoryStore_ReclaimSameOwner 验证同 owner 重复占用幂等
func TestMemoryStore_ReclaimSameOwner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Claim(ctx, "email", "a@x.com", "owner-a", DefaultPartition))
	require.NoError(t, s.Claim(ctx, "email", "a@x.com", "owner-a", DefaultPartition))

	assert.Equal(t, 1, s.ClaimCount(DefaultPartition))
}

// TestMemoryStore_ReclaimNewValue 验证同 owner 改占新值时释放旧值
func TestMemoryStore_ReclaimNewValue(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Claim(ctx, "email", "old@x.com", "owner-a", DefaultPartition))
	require.NoError(t, s.Claim(ctx, "email", "new@x.com", "owner-a", DefaultPartition))

	// 旧值已释放，可被其他 owner 占用
	_, held := s.HolderOf("email", "old@x.com", DefaultPartition)
	assert.False(t, held)
	require.NoError(t, s.Claim(ctx, "email", "old@x.com", "owner-b", DefaultPartition))
}

// TestMemoryStore_Release 验证释放路径
func TestMemoryStore_Release(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Claim(ctx, "email", "a@x.com", "owner-a", DefaultPartition))

	// 非持有者释放 → 错误，声明保留
	err := s.Release(ctx, "email", "a@x.com", "owner-b", DefaultPartition)
	assert.ErrorIs(t, err, ErrClaimedByAnotherOwner)
	_, held := s.HolderOf("email", "a@x.com", DefaultPartition)
	assert.True(t, held)

	// 持有者释放 → 成功且幂等
	require.NoError(t, s.Release(ctx, "email", "a@x.com", "owner-a", DefaultPartition))
	require.NoError(t, s.Release(ctx, "email", "a@x.com", "owner-a", DefaultPartition))
	assert.Equal(t, 0, s.ClaimCount(DefaultPartition))
}

// TestMemoryStore_ReleaseByOwner 验证按 owner 释放
func TestMemoryStore_ReleaseByOwner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Claim(ctx, "email", "a@x.com", "owner-a", DefaultPartition))
	require.NoError(t, s.ReleaseByOwner(ctx, "email", "owner-a", DefaultPartition))

	_, held := s.HolderOf("email", "a@x.com", DefaultPartition)
	assert.False(t, held)

	// owner 未持有任何值时为空操作
	require.NoError(t, s.ReleaseByOwner(ctx, "email", "owner-a", DefaultPartition))
}

// ============================================================================
// 无主模式
// ============================================================================

// TestMemoryStore_NoOwnerMode 验证无主模式独立于 owner 维度
func TestMemoryStore_NoOwnerMode(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.ClaimValue(ctx, "slug", "hello", DefaultPartition))
	assert.ErrorIs(t, s.ClaimValue(ctx, "slug", "hello", DefaultPartition), ErrAlreadyClaimed)

	// 与带 owner 的命名空间互不干扰
	require.NoError(t, s.Claim(ctx, "slug", "hello", "owner-a", DefaultPartition))

	require.NoError(t, s.ReleaseByValue(ctx, "slug", "hello", DefaultPartition))
	assert.False(t, s.ValueHeld("slug", "hello", DefaultPartition))
	require.NoError(t, s.ClaimValue(ctx, "slug", "hello", DefaultPartition))
}

// ============================================================================
// 分区隔离与并发
// ============================================================================

// TestMemoryStore_PartitionIsolation 验证分区之间互不冲突
func TestMemoryStore_PartitionIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Claim(ctx, "email", "a@x.com", "owner-a", "tenant-1"))
	require.NoError(t, s.Claim(ctx, "email", "a@x.com", "owner-b", "tenant-2"))
}

// TestMemoryStore_ConcurrentClaims 验证并发占用同一值只有一个成功
func TestMemoryStore_ConcurrentClaims(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(owner string) {
			defer wg.Done()
			if err := s.Claim(ctx, "email", "a@x.com", owner, DefaultPartition); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(string(rune('a' + i)))
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, s.ClaimCount(DefaultPartition))
}
