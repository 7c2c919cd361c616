// Package uniqueness 跨进程命令表示
//
// command.go 定义显式携带类型标识的命令形式。
// 进程内命令用 Go 类型即可；通过 HTTP 等途径传入的命令没有
// Go 类型，用 TypedCommand 携带类型标识、持有者与字段值。
package uniqueness

// CommandTyper 自带类型标识的命令
type CommandTyper interface {
	CommandType() string
}

// TypedCommand 显式类型标识的命令
type TypedCommand struct {
	Type   string         `json:"command_type"`
	Owner  string         `json:"owner,omitempty"`
	Fields map[string]any `json:"fields"`
}

// CommandType 实现 CommandTyper
func (c TypedCommand) CommandType() string {
	return c.Type
}

// Field 按名返回字段值
func (c TypedCommand) Field(name string) (any, bool) {
	v, ok := c.Fields[name]
	return v, ok
}
