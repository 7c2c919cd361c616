// Package claimstore 定义声明存储层领域错误
//
// 这些错误用于隔离唯一性核心与底层存储引擎的错误类型，
// 各适配器实现（redis/etcd/postgres/memory）负责将底层错误转换为这些领域错误。
package claimstore

import "errors"

var (
	// ErrAlreadyClaimed (key, value) 已被其他持有者（或无主模式下已被）占用
	ErrAlreadyClaimed = errors.New("claim: value already claimed")

	// ErrClaimedByAnotherOwner 释放时发现持有者不是调用方声称的 owner
	ErrClaimedByAnotherOwner = errors.New("claim: held by another owner")
)
