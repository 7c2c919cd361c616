// Package claimstore 声明存储层类型定义
package claimstore

import (
	"crypto/sha256"
	"encoding/hex"
)

// ============================================================================
// 常量
// ============================================================================

const (
	// DefaultPartition 进程级默认分区
	DefaultPartition = "uniqueness"

	// NoOwner 无主模式占位持有者，仅存储内部使用
	NoOwner = "-"
)

// ============================================================================
// 声明记录
// ============================================================================

// Record 一条已持有的声明，(key, value, owner, partition) 四元组。
// 核心只在单次评估的生命周期内持有它，用于驱动补偿释放，不做持久化。
type Record struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Owner     string `json:"owner,omitempty"`
	Partition string `json:"partition"`
	NoOwner   bool   `json:"no_owner,omitempty"`
}

// ============================================================================
// 工具函数
// ============================================================================

// ValueDigest 计算声明值的短摘要，用于拼接存储 key。
// 值本身可能很长或含分隔符（复合字段 JSON 编码后），不能直接进 key。
func ValueDigest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:16])
}
