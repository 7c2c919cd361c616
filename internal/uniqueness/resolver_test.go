// Package uniqueness 字段值解析测试
package uniqueness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerAccount struct {
	Email    string
	Username string
	Age      int
	Nickname *string
}

// ============================================================================
// 单字段解析
// ============================================================================

// TestResolve_SingleField 验证单字段解析与折叠
func TestResolve_SingleField(t *testing.T) {
	cmd := registerAccount{Email: "User@X.com"}

	key, value := resolve(cmd, Unique("Email", "email taken", "acc-1"))
	assert.Equal(t, "Email", key)
	assert.Equal(t, "User@X.com", value)

	_, folded := resolve(cmd, UniqueWith("Email", "email taken", "acc-1",
		Options{IgnoreCase: FoldAll()}))
	assert.Equal(t, "user@x.com", folded)
}

// TestResolve_PointerCommandAndPointerField 验证指针命令与 *string 字段
func TestResolve_PointerCommandAndPointerField(t *testing.T) {
	nick := "CoolCat"
	cmd := &registerAccount{Nickname: &nick}

	_, value := resolve(cmd, UniqueWith("Nickname", "nickname taken", "acc-1",
		Options{IgnoreCase: FoldAll()}))
	assert.Equal(t, "coolcat", value)

	_, missing := resolve(cmd, Unique("Missing", "x", "acc-1"))
	assert.Nil(t, missing)
}

// TestResolve_NonTextPassThrough 验证折叠只作用于文本值
func TestResolve_NonTextPassThrough(t *testing.T) {
	cmd := registerAccount{Age: 30}

	_, value := resolve(cmd, UniqueWith("Age", "age taken", "acc-1",
		Options{IgnoreCase: FoldAll()}))
	assert.Equal(t, 30, value)
}

// TestResolve_MapCommand 验证 map 形式的命令
func TestResolve_MapCommand(t *testing.T) {
	cmd := map[string]any{"Email": "A@B.com"}

	_, value := resolve(cmd, UniqueWith("Email", "email taken", "acc-1",
		Options{IgnoreCase: FoldAll()}))
	assert.Equal(t, "a@b.com", value)
}

// ============================================================================
// 复合字段解析
// ============================================================================

// TestResolve_CompositeOrder 验证复合 key 与值列表都是规约正向顺序
func TestResolve_CompositeOrder(t *testing.T) {
	cmd := registerAccount{Email: "A@B.com", Username: "neo"}
	d := Composite([]string{"Email", "Username"}, "pair taken", "acc-1", Options{})

	key, value := resolve(cmd, d)
	assert.Equal(t, "Email+Username", key)
	require.IsType(t, []any{}, value)
	assert.Equal(t, []any{"A@B.com", "neo"}, value)
}

// TestResolve_CompositePerFieldFold 验证复合规则按字段折叠
func TestResolve_CompositePerFieldFold(t *testing.T) {
	cmd := registerAccount{Email: "A@B.com", Username: "Neo"}
	d := Composite([]string{"Email", "Username"}, "pair taken", "acc-1",
		Options{IgnoreCase: FoldFields("Email")})

	_, value := resolve(cmd, d)
	assert.Equal(t, []any{"a@b.com", "Neo"}, value)
}

// TestResolve_CompositeStability 验证相同字段值的两个命令产出相同 key 和值
func TestResolve_CompositeStability(t *testing.T) {
	d := Composite([]string{"Email", "Username"}, "pair taken", "acc-1", Options{})

	k1, v1 := resolve(registerAccount{Email: "a@b.com", Username: "neo", Age: 1}, d)
	k2, v2 := resolve(&registerAccount{Email: "a@b.com", Username: "neo", Age: 99}, d)

	assert.Equal(t, k1, k2)
	assert.Equal(t, canonical(v1), canonical(v2))
}

// ============================================================================
// 描述符规范化
// ============================================================================

// TestDescriptor_LabelDefault 验证标签缺省为声明 key
func TestDescriptor_LabelDefault(t *testing.T) {
	assert.Equal(t, "Email", Unique("Email", "m", "o").Label())
	assert.Equal(t, "Email+Username",
		Composite([]string{"Email", "Username"}, "m", "o", Options{}).Label())
	assert.Equal(t, "邮箱",
		UniqueWith("Email", "m", "o", Options{Label: "邮箱"}).Label())
}

// TestDescriptor_ShapePanics 验证形状错误按编程错误处理
func TestDescriptor_ShapePanics(t *testing.T) {
	assert.Panics(t, func() { Composite(nil, "m", "o", Options{}) })
	assert.Panics(t, func() { Unique("", "m", "o") })
}

// TestCommandType 验证命令类型标识
func TestCommandType(t *testing.T) {
	assert.Equal(t, "registerAccount", CommandType(registerAccount{}))
	assert.Equal(t, "registerAccount", CommandType(&registerAccount{}))
	assert.Equal(t, "", CommandType(nil))
}
