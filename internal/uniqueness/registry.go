// Package uniqueness 规则来源注册表
//
// registry.go 把命令类型映射到其唯一性规则来源：
//   - 命令类型实现 HasUniqueFields 接口时直接使用
//   - 否则按命令类型标识查注册表
//   - 都没有时规则为空（命令无唯一性约束）
//
// 注册是显式的（类型标识 -> 来源映射），不依赖运行时分发。
package uniqueness

import (
	"reflect"
	"sync"
)

// HasUniqueFields 命令自带唯一性规则时实现此接口
type HasUniqueFields interface {
	UniqueFields() []Descriptor
}

// RuleSource 为某个命令类型产出唯一性规则
type RuleSource interface {
	UniqueFields(cmd any) []Descriptor
}

// RuleSourceFunc 函数形式的 RuleSource
type RuleSourceFunc func(cmd any) []Descriptor

// UniqueFields 实现 RuleSource
func (f RuleSourceFunc) UniqueFields(cmd any) []Descriptor {
	return f(cmd)
}

// Registry 命令类型 -> 规则来源 注册表
type Registry struct {
	mu      sync.RWMutex
	sources map[string]RuleSource
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]RuleSource)}
}

// Register 为命令类型注册规则来源，重复注册覆盖
func (r *Registry) Register(commandType string, src RuleSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[commandType] = src
}

// RegisterFunc Register 的函数便捷形式
func (r *Registry) RegisterFunc(commandType string, fn func(cmd any) []Descriptor) {
	r.Register(commandType, RuleSourceFunc(fn))
}

// DescriptorsFor 返回命令的唯一性规则，缺省为空
func (r *Registry) DescriptorsFor(cmd any) []Descriptor {
	if h, ok := cmd.(HasUniqueFields); ok {
		return h.UniqueFields()
	}
	if r == nil {
		return nil
	}

	r.mu.RLock()
	src, ok := r.sources[CommandType(cmd)]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return src.UniqueFields(cmd)
}

// CommandType 返回命令的类型标识
//
// 自带标识的命令（CommandTyper）优先；否则取运行时类型名，
// 指针命令取其元素类型。分区按类型派生时也用此标识。
func CommandType(cmd any) string {
	if ct, ok := cmd.(CommandTyper); ok {
		return ct.CommandType()
	}
	t := reflect.TypeOf(cmd)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
