// Package redis 声明/释放操作实现
//
// Key 布局（{prefix} 默认 "claim"）：
//   {prefix}:{partition}:v:{key}:{digest(value)} -> owner    值索引（冲突检测权威）
//   {prefix}:{partition}:o:{key}:{owner}         -> digest   owner 索引（改占/按 owner 释放）
//   {prefix}:{partition}:n:{key}:{digest(value)} -> 1        无主模式独立命名空间
//
// 双索引必须原子更新，全部走 Lua 脚本。owner 索引存值摘要而非原值，
// 这样脚本内可以直接拼出旧值索引 key 完成改占时的旧值释放。
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"claimd/internal/shared/claimstore"
)

var _ claimstore.ClaimStore = (*Store)(nil)

// claimScript 带 owner 占用
// KEYS[1]=值索引 key KEYS[2]=owner 索引 key
// ARGV[1]=owner ARGV[2]=值摘要 ARGV[3]=值索引 key 前缀
// 返回 1=成功 0=已被其他 owner 占用
var claimScript = redis.NewScript(`
local held = redis.call('GET', KEYS[1])
if held then
  if held == ARGV[1] then return 1 end
  return 0
end
local prev = redis.call('GET', KEYS[2])
if prev and prev ~= ARGV[2] then
  redis.call('DEL', ARGV[3] .. prev)
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
return 1
`)

// releaseScript 带 owner 释放
// KEYS[1]=值索引 key KEYS[2]=owner 索引 key ARGV[1]=owner
// 返回 1=成功（含幂等空释放） -1=持有者不匹配
var releaseScript = redis.NewScript(`
local held = redis.call('GET', KEYS[1])
if not held then return 1 end
if held ~= ARGV[1] then return -1 end
redis.call('DEL', KEYS[1])
redis.call('DEL', KEYS[2])
return 1
`)

// releaseByOwnerScript 按 owner 释放
// KEYS[1]=owner 索引 key ARGV[1]=值索引 key 前缀
var releaseByOwnerScript = redis.NewScript(`
local digest = redis.call('GET', KEYS[1])
if not digest then return 1 end
redis.call('DEL', ARGV[1] .. digest)
redis.call('DEL', KEYS[1])
return 1
`)

func (s *Store) valueKey(partition, key, digest string) string {
	return fmt.Sprintf("%s:%s:v:%s:%s", s.prefix, partition, key, digest)
}

func (s *Store) valuePrefix(partition, key string) string {
	return fmt.Sprintf("%s:%s:v:%s:", s.prefix, partition, key)
}

func (s *Store) ownerKey(partition, key, owner string) string {
	return fmt.Sprintf("%s:%s:o:%s:%s", s.prefix, partition, key, owner)
}

func (s *Store) noOwnerKey(partition, key, digest string) string {
	return fmt.Sprintf("%s:%s:n:%s:%s", s.prefix, partition, key, digest)
}

// Claim 为 owner 占用 (key, value)
func (s *Store) Claim(ctx context.Context, key, value, owner, partition string) error {
	digest := claimstore.ValueDigest(value)
	keys := []string{s.valueKey(partition, key, digest), s.ownerKey(partition, key, owner)}
	res, err := claimScript.Run(ctx, s.client, keys, owner, digest, s.valuePrefix(partition, key)).Int()
	if err != nil {
		return fmt.Errorf("redis claim failed: %w", err)
	}
	if res == 0 {
		return claimstore.ErrAlreadyClaimed
	}
	return nil
}

// ClaimValue 无主模式占用 (key, value)
func (s *Store) ClaimValue(ctx context.Context, key, value, partition string) error {
	digest := claimstore.ValueDigest(value)
	ok, err := s.client.SetNX(ctx, s.noOwnerKey(partition, key, digest), 1, 0).Result()
	if err != nil {
		return fmt.Errorf("redis claim failed: %w", err)
	}
	if !ok {
		return claimstore.ErrAlreadyClaimed
	}
	return nil
}

// Release 释放 owner 持有的 (key, value)
func (s *Store) Release(ctx context.Context, key, value, owner, partition string) error {
	digest := claimstore.ValueDigest(value)
	keys := []string{s.valueKey(partition, key, digest), s.ownerKey(partition, key, owner)}
	res, err := releaseScript.Run(ctx, s.client, keys, owner).Int()
	if err != nil {
		return fmt.Errorf("redis release failed: %w", err)
	}
	if res < 0 {
		return claimstore.ErrClaimedByAnotherOwner
	}
	return nil
}

// ReleaseByOwner 释放 owner 在 key 下持有的任何值
func (s *Store) ReleaseByOwner(ctx context.Context, key, owner, partition string) error {
	keys := []string{s.ownerKey(partition, key, owner)}
	if err := releaseByOwnerScript.Run(ctx, s.client, keys, s.valuePrefix(partition, key)).Err(); err != nil {
		return fmt.Errorf("redis release failed: %w", err)
	}
	return nil
}

// ReleaseByValue 释放无主模式占用的 (key, value)
func (s *Store) ReleaseByValue(ctx context.Context, key, value, partition string) error {
	digest := claimstore.ValueDigest(value)
	if err := s.client.Del(ctx, s.noOwnerKey(partition, key, digest)).Err(); err != nil {
		return fmt.Errorf("redis release failed: %w", err)
	}
	return nil
}
