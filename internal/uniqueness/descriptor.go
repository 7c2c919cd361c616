// Package uniqueness 命令唯一性约束核心
//
// 在命令进入处理管线前，对其声明了唯一性规则的字段执行
// 分布式占用（claim），整体失败时回滚本次评估产生的全部占用。
//
// descriptor.go 定义规则描述符及其规范化：
//   - Descriptor：一条唯一性规则的规范 4 元组（字段、错误消息、持有者、选项）
//   - Options：类型化的规则选项（取代开放式 option map）
//   - CaseFold：大小写折叠策略（全部折叠 / 指定字段折叠）
package uniqueness

import (
	"context"
	"slices"
	"strings"
)

// ============================================================================
// 选项
// ============================================================================

// VerifyFunc 外部二次校验回调
//
// 占用成功后调用，返回 false 表示外部系统认定值不唯一，
// 本条占用会被立即释放并计入错误。
type VerifyFunc func(ctx context.Context, field string, value any, owner string, opts Options) bool

// CaseFold 大小写折叠策略
//
// All 为 true 时折叠所有字段；否则只折叠 Fields 中列出的字段
// （仅对复合字段规则有意义）。零值表示不折叠。
type CaseFold struct {
	All    bool
	Fields []string
}

// FoldAll 折叠全部字段
func FoldAll() CaseFold {
	return CaseFold{All: true}
}

// FoldFields 只折叠指定字段
func FoldFields(fields ...string) CaseFold {
	return CaseFold{Fields: fields}
}

// folds 返回指定字段是否需要折叠
func (c CaseFold) folds(field string) bool {
	return c.All || slices.Contains(c.Fields, field)
}

// Options 唯一性规则选项
type Options struct {
	// IgnoreCase 值比较前的大小写折叠策略
	IgnoreCase CaseFold

	// Label 错误报告中的字段标签，缺省为字段标识（或复合 key）
	Label string

	// IsUnique 外部二次校验回调，nil 表示不校验
	IsUnique VerifyFunc

	// Partition 显式分区覆盖
	Partition string

	// NoOwner 无主模式：仅按 (key, value, partition) 占用，
	// 释放必须走按值释放路径
	NoOwner bool
}

// ============================================================================
// 描述符
// ============================================================================

// Descriptor 一条规范化的唯一性规则
//
// Fields 为规约顺序的字段标识列表：单字段规则长度为 1，
// 复合规则长度 >= 2，组合值必须联合唯一。
type Descriptor struct {
	Fields  []string
	Message string
	Owner   string
	Options Options
}

// Unique 构造单字段规则（3 元形式，选项取默认值）
func Unique(field, message, owner string) Descriptor {
	return UniqueWith(field, message, owner, Options{})
}

// UniqueWith 构造单字段规则（4 元形式）
func UniqueWith(field, message, owner string, opts Options) Descriptor {
	return normalize(Descriptor{
		Fields:  []string{field},
		Message: message,
		Owner:   owner,
		Options: opts,
	})
}

// Composite 构造复合字段规则，字段按规约顺序给出
func Composite(fields []string, message, owner string, opts Options) Descriptor {
	return normalize(Descriptor{
		Fields:  fields,
		Message: message,
		Owner:   owner,
		Options: opts,
	})
}

// normalize 校验描述符形状并做规范化。
// 形状错误属于调用方编程错误，直接 panic 而不是返回运行时错误。
func normalize(d Descriptor) Descriptor {
	if len(d.Fields) == 0 {
		panic("uniqueness: descriptor requires at least one field")
	}
	for _, f := range d.Fields {
		if f == "" {
			panic("uniqueness: descriptor field identifier must not be empty")
		}
	}
	return d
}

// Key 返回规则的声明 key：单字段为字段标识本身，
// 复合字段为按规约顺序用 "+" 连接的确定性标识。
func (d Descriptor) Key() string {
	return strings.Join(d.Fields, "+")
}

// Label 返回错误报告标签，缺省为声明 key
func (d Descriptor) Label() string {
	if d.Options.Label != "" {
		return d.Options.Label
	}
	return d.Key()
}

// composite 返回是否复合字段规则
func (d Descriptor) composite() bool {
	return len(d.Fields) > 1
}
