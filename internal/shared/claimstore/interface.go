// Package claimstore 定义声明存储层抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 唯一性核心只依赖本接口，不知道具体实现
//   - 具体实现在子包中：redis/, etcd/, postgres/
//   - 初始化时通过依赖注入传入实现
//
// 声明（Claim）语义：在一个分区（partition）内，(key, value) 至多被一个
// 持有者（owner）占用。无主模式（no-owner）下只按 (key, value) 占用，
// 必须通过 ReleaseByValue 释放，不得走带 owner 的释放路径。
package claimstore

import (
	"context"
)

// ClaimStore 声明存储接口
//
// 所有操作都必须对并发调用方保证原子性：同一 (key, value, partition)
// 同时只能有一个调用方观察到成功。重复调用是安全的（幂等）。
//
// 错误约定（见 errors.go）：
//   - nil                     声明/释放成功
//   - ErrAlreadyClaimed       (key, value) 已被其他持有者占用
//   - ErrClaimedByAnotherOwner 释放时持有者不匹配
//   - 其他错误                 底层存储故障（UnknownError）
type ClaimStore interface {
	// Claim 在 partition 内为 owner 占用 (key, value)。
	// 同一 owner 重复占用同一值成功（幂等）；同一 owner 在同一 key 下
	// 改占新值时，先释放其旧值再占用新值。
	Claim(ctx context.Context, key, value, owner, partition string) error

	// ClaimValue 无主模式占用，仅按 (key, value, partition) 维度。
	ClaimValue(ctx context.Context, key, value, partition string) error

	// Release 释放 owner 持有的 (key, value)。
	Release(ctx context.Context, key, value, owner, partition string) error

	// ReleaseByOwner 释放 owner 在 key 下持有的任何值。
	ReleaseByOwner(ctx context.Context, key, owner, partition string) error

	// ReleaseByValue 释放无主模式占用的 (key, value)。
	ReleaseByValue(ctx context.Context, key, value, partition string) error

	// Close 关闭底层连接
	Close() error
}
