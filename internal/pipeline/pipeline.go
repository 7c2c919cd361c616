// Package pipeline 命令分发管线
//
// 宿主侧的分发器与中间件链：命令在进入处理器之前依次经过各中间件的
// BeforeDispatch，任何一个返回错误即终止分发；处理器成功后按注册的
// 逆序执行 AfterDispatch，失败则执行 AfterFailure。
package pipeline

import (
	"context"
	"fmt"

	"claimd/internal/uniqueness"
	"claimd/pkg/logging"
)

// Handler 命令处理器
type Handler interface {
	Handle(ctx context.Context, cmd any) error
}

// HandlerFunc 函数形式的 Handler
type HandlerFunc func(ctx context.Context, cmd any) error

// Handle 实现 Handler
func (f HandlerFunc) Handle(ctx context.Context, cmd any) error {
	return f(ctx, cmd)
}

// Middleware 分发中间件
type Middleware interface {
	// BeforeDispatch 命令进入处理器前调用，返回错误终止分发
	BeforeDispatch(ctx context.Context, cmd any) error

	// AfterDispatch 处理器成功后调用
	AfterDispatch(ctx context.Context, cmd any)

	// AfterFailure 处理器失败后调用
	AfterFailure(ctx context.Context, cmd any, err error)
}

// Dispatcher 命令分发器
type Dispatcher struct {
	middlewares []Middleware
	handlers    map[string]Handler
	logger      *logging.Logger
}

// NewDispatcher 创建分发器
func NewDispatcher(logger *logging.Logger, middlewares ...Middleware) *Dispatcher {
	if logger == nil {
		logger = logging.Default("pipeline")
	}
	return &Dispatcher{
		middlewares: middlewares,
		handlers:    make(map[string]Handler),
		logger:      logger,
	}
}

// RegisterHandler 为命令类型注册处理器
func (d *Dispatcher) RegisterHandler(commandType string, h Handler) {
	d.handlers[commandType] = h
}

// Dispatch 分发命令
//
// 中间件 BeforeDispatch 返回的错误原样返回给调用方
// （校验类错误见 ValidationError）。
func (d *Dispatcher) Dispatch(ctx context.Context, cmd any) error {
	cmdType := uniqueness.CommandType(cmd)
	h, ok := d.handlers[cmdType]
	if !ok {
		return fmt.Errorf("pipeline: no handler registered for command type %q", cmdType)
	}

	for _, m := range d.middlewares {
		if err := m.BeforeDispatch(ctx, cmd); err != nil {
			d.logger.WithCommandType(cmdType).WithError(err).Info("Dispatch halted by middleware")
			return err
		}
	}

	if err := h.Handle(ctx, cmd); err != nil {
		for i := len(d.middlewares) - 1; i >= 0; i-- {
			d.middlewares[i].AfterFailure(ctx, cmd, err)
		}
		return err
	}

	for i := len(d.middlewares) - 1; i >= 0; i-- {
		d.middlewares[i].AfterDispatch(ctx, cmd)
	}
	return nil
}
