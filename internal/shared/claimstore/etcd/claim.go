// Package etcd 声明/释放操作实现
//
// Key 布局（{prefix} 默认 "/claims"）：
//   {prefix}/{partition}/v/{key}/{digest(value)} -> owner    值索引
//   {prefix}/{partition}/o/{key}/{owner}         -> digest   owner 索引
//   {prefix}/{partition}/n/{key}/{digest(value)} -> 1        无主模式
//
// 双索引通过 etcd 事务（Compare-Then）原子更新。占用走乐观循环：
// 先读快照，再以 ModRevision 比较提交，比较失败说明有并发写入，重试。
package etcd

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"

	"claimd/internal/shared/claimstore"
)

var _ claimstore.ClaimStore = (*Store)(nil)

// claimRetries 乐观事务重试上限
const claimRetries = 3

func (s *Store) valueKey(partition, key, digest string) string {
	return fmt.Sprintf("%s/%s/v/%s/%s", s.prefix, partition, key, digest)
}

func (s *Store) ownerKey(partition, key, owner string) string {
	return fmt.Sprintf("%s/%s/o/%s/%s", s.prefix, partition, key, owner)
}

func (s *Store) noOwnerKey(partition, key, digest string) string {
	return fmt.Sprintf("%s/%s/n/%s/%s", s.prefix, partition, key, digest)
}

// getRev 读取 key 的当前值与 ModRevision（不存在时 rev=0）
func (s *Store) getRev(ctx context.Context, key string) (string, int64, error) {
	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return "", 0, err
	}
	if len(resp.Kvs) == 0 {
		return "", 0, nil
	}
	return string(resp.Kvs[0].Value), resp.Kvs[0].ModRevision, nil
}

// Claim 为 owner 占用 (key, value)
func (s *Store) Claim(ctx context.Context, key, value, owner, partition string) error {
	digest := claimstore.ValueDigest(value)
	vk := s.valueKey(partition, key, digest)
	owk := s.ownerKey(partition, key, owner)

	for attempt := 0; attempt < claimRetries; attempt++ {
		holder, holderRev, err := s.getRev(ctx, vk)
		if err != nil {
			return fmt.Errorf("etcd claim failed: %w", err)
		}
		if holderRev > 0 {
			if holder == owner {
				return nil
			}
			return claimstore.ErrAlreadyClaimed
		}

		prevDigest, prevRev, err := s.getRev(ctx, owk)
		if err != nil {
			return fmt.Errorf("etcd claim failed: %w", err)
		}

		ops := []clientv3.Op{
			clientv3.OpPut(vk, owner),
			clientv3.OpPut(owk, digest),
		}
		// 同 owner 改占新值：同一事务内释放旧值索引
		if prevRev > 0 && prevDigest != digest {
			ops = append(ops, clientv3.OpDelete(s.valueKey(partition, key, prevDigest)))
		}

		resp, err := s.client.Txn(ctx).If(
			clientv3.Compare(clientv3.ModRevision(vk), "=", holderRev),
			clientv3.Compare(clientv3.ModRevision(owk), "=", prevRev),
		).Then(ops...).Commit()
		if err != nil {
			return fmt.Errorf("etcd claim failed: %w", err)
		}
		if resp.Succeeded {
			return nil
		}
		// 快照过期，重读后重试
	}
	return fmt.Errorf("etcd claim failed: too many conflicting writes for key %q", key)
}

// ClaimValue 无主模式占用 (key, value)
func (s *Store) ClaimValue(ctx context.Context, key, value, partition string) error {
	nk := s.noOwnerKey(partition, key, claimstore.ValueDigest(value))
	resp, err := s.client.Txn(ctx).If(
		clientv3.Compare(clientv3.CreateRevision(nk), "=", 0),
	).Then(clientv3.OpPut(nk, "1")).Commit()
	if err != nil {
		return fmt.Errorf("etcd claim failed: %w", err)
	}
	if !resp.Succeeded {
		return claimstore.ErrAlreadyClaimed
	}
	return nil
}

// Release 释放 owner 持有的 (key, value)
func (s *Store) Release(ctx context.Context, key, value, owner, partition string) error {
	digest := claimstore.ValueDigest(value)
	vk := s.valueKey(partition, key, digest)

	resp, err := s.client.Txn(ctx).If(
		clientv3.Compare(clientv3.Value(vk), "=", owner),
	).Then(
		clientv3.OpDelete(vk),
		clientv3.OpDelete(s.ownerKey(partition, key, owner)),
	).Commit()
	if err != nil {
		return fmt.Errorf("etcd release failed: %w", err)
	}
	if resp.Succeeded {
		return nil
	}

	// 比较失败：要么声明不存在（幂等成功），要么被其他 owner 持有
	_, rev, err := s.getRev(ctx, vk)
	if err != nil {
		return fmt.Errorf("etcd release failed: %w", err)
	}
	if rev == 0 {
		return nil
	}
	return claimstore.ErrClaimedByAnotherOwner
}

// ReleaseByOwner 释放 owner 在 key 下持有的任何值
func (s *Store) ReleaseByOwner(ctx context.Context, key, owner, partition string) error {
	owk := s.ownerKey(partition, key, owner)
	digest, rev, err := s.getRev(ctx, owk)
	if err != nil {
		return fmt.Errorf("etcd release failed: %w", err)
	}
	if rev == 0 {
		return nil
	}

	_, err = s.client.Txn(ctx).If(
		clientv3.Compare(clientv3.ModRevision(owk), "=", rev),
	).Then(
		clientv3.OpDelete(s.valueKey(partition, key, digest)),
		clientv3.OpDelete(owk),
	).Commit()
	if err != nil {
		return fmt.Errorf("etcd release failed: %w", err)
	}
	return nil
}

// ReleaseByValue 释放无主模式占用的 (key, value)
func (s *Store) ReleaseByValue(ctx context.Context, key, value, partition string) error {
	nk := s.noOwnerKey(partition, key, claimstore.ValueDigest(value))
	if _, err := s.client.Delete(ctx, nk); err != nil {
		return fmt.Errorf("etcd release failed: %w", err)
	}
	return nil
}
