// Package pipeline 唯一性中间件
//
// 把编排器的评估结果翻译成管线的放行/终止决定：
//   - BeforeDispatch 评估失败 → 以 ValidationError 终止分发
//   - AfterFailure 处理器失败 → 释放本命令的声明（处理器没能成交，
//     聚合不会持有这些值）
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"claimd/internal/uniqueness"
)

// ValidationError 唯一性校验失败
//
// 一次评估的全部失败规则聚合在一个错误里返回，
// 宿主可以一次向用户呈现所有被违反的约束。
type ValidationError struct {
	Errors []uniqueness.FieldError
}

// Error 实现 error
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Label, fe.Message))
	}
	return "uniqueness validation failed: " + strings.Join(parts, "; ")
}

// UniquenessMiddleware 唯一性检查中间件
type UniquenessMiddleware struct {
	checker *uniqueness.Checker
}

// NewUniquenessMiddleware 创建唯一性中间件
func NewUniquenessMiddleware(checker *uniqueness.Checker) *UniquenessMiddleware {
	return &UniquenessMiddleware{checker: checker}
}

var _ Middleware = (*UniquenessMiddleware)(nil)

// BeforeDispatch 评估命令唯一性，失败终止分发
func (m *UniquenessMiddleware) BeforeDispatch(ctx context.Context, cmd any) error {
	res := m.checker.Evaluate(ctx, cmd)
	if res.Ok() {
		return nil
	}
	return &ValidationError{Errors: res.Errors}
}

// AfterDispatch 成功路径不动已成交的声明
func (m *UniquenessMiddleware) AfterDispatch(ctx context.Context, cmd any) {}

// AfterFailure 处理器失败时释放本命令的声明
func (m *UniquenessMiddleware) AfterFailure(ctx context.Context, cmd any, _ error) {
	// 尽力而为：释放失败只记日志（Checker 内部处理），不影响原错误
	_ = m.checker.Release(ctx, cmd)
}
