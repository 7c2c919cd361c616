// Package pipeline 命令分发管线测试
package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimd/internal/shared/claimstore"
	"claimd/internal/uniqueness"
	"claimd/pkg/logging"
)

// openAccount 测试命令
type openAccount struct {
	AccountID string
	Email     string
}

func (c openAccount) UniqueFields() []uniqueness.Descriptor {
	return []uniqueness.Descriptor{
		uniqueness.Unique("Email", "email taken", c.AccountID),
	}
}

func newTestDispatcher(store claimstore.ClaimStore, h Handler) (*Dispatcher, *uniqueness.Checker) {
	logger := logging.New(logging.Config{Level: "error", Component: "pipeline-test"})
	checker := uniqueness.NewChecker(store, uniqueness.NewRegistry(), uniqueness.Config{}, logger)
	d := NewDispatcher(logger, NewUniquenessMiddleware(checker))
	d.RegisterHandler("openAccount", h)
	return d, checker
}

// TestDispatch_AcceptAndHalt 验证通过与终止两条路径
func TestDispatch_AcceptAndHalt(t *testing.T) {
	store := claimstore.NewMemoryStore()
	handled := 0
	d, _ := newTestDispatcher(store, HandlerFunc(func(context.Context, any) error {
		handled++
		return nil
	}))
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, openAccount{AccountID: "acc-1", Email: "a@x.com"}))
	assert.Equal(t, 1, handled)

	// 第二个账户用同一邮箱 → ValidationError，处理器不执行
	err := d.Dispatch(ctx, openAccount{AccountID: "acc-2", Email: "a@x.com"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []uniqueness.FieldError{{Label: "Email", Message: "email taken"}}, verr.Errors)
	assert.Equal(t, 1, handled)
}

// TestDispatch_HandlerFailureReleasesClaims 验证处理器失败后声明被释放
func TestDispatch_HandlerFailureReleasesClaims(t *testing.T) {
	store := claimstore.NewMemoryStore()
	boom := errors.New("aggregate rejected command")
	d, _ := newTestDispatcher(store, HandlerFunc(func(context.Context, any) error {
		return boom
	}))
	ctx := context.Background()

	err := d.Dispatch(ctx, openAccount{AccountID: "acc-1", Email: "a@x.com"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.ClaimCount(claimstore.DefaultPartition))

	// 值重新可用
	okHandler := HandlerFunc(func(context.Context, any) error { return nil })
	d2, _ := newTestDispatcher(store, okHandler)
	require.NoError(t, d2.Dispatch(ctx, openAccount{AccountID: "acc-2", Email: "a@x.com"}))
}

// TestDispatch_UnknownCommand 验证未注册命令类型报错
func TestDispatch_UnknownCommand(t *testing.T) {
	d := NewDispatcher(logging.New(logging.Config{Level: "error", Component: "pipeline-test"}))

	type stray struct{}
	err := d.Dispatch(context.Background(), stray{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler registered")
}

// TestValidationError_Message 验证错误文本聚合所有失败规则
func TestValidationError_Message(t *testing.T) {
	verr := &ValidationError{Errors: []uniqueness.FieldError{
		{Label: "Email", Message: "email taken"},
		{Label: "Username", Message: "username taken"},
	}}
	assert.Equal(t,
		"uniqueness validation failed: Email: email taken; Username: username taken",
		verr.Error())
}
