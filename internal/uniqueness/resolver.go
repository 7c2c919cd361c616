// Package uniqueness 字段值解析
//
// resolver.go 从命令中读取规则字段的值并做大小写折叠：
//   - 命令可以是结构体（含指针）或 map[string]any
//   - 单字段规则解析为字段值本身
//   - 复合规则解析为按规约顺序排列的值列表，
//     声明 key 与值列表使用同一个正向遍历顺序
//   - 折叠只作用于文本值，其他类型原样通过
package uniqueness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// resolve 解析规则的 (key, value)
//
// 复合规则的 value 为 []any，元素顺序与 Fields 一致。
func resolve(cmd any, d Descriptor) (string, any) {
	if !d.composite() {
		f := d.Fields[0]
		return d.Key(), fold(fieldValue(cmd, f), d.Options.IgnoreCase.folds(f))
	}

	values := make([]any, 0, len(d.Fields))
	for _, f := range d.Fields {
		values = append(values, fold(fieldValue(cmd, f), d.Options.IgnoreCase.folds(f)))
	}
	return d.Key(), values
}

// fieldValue 从命令中读取单个字段的值
//
// TypedCommand 和 map 按 key 查找，结构体按导出字段名查找；
// 找不到返回 nil。
func fieldValue(cmd any, field string) any {
	if tc, ok := cmd.(TypedCommand); ok {
		v, _ := tc.Field(field)
		return v
	}
	if m, ok := cmd.(map[string]any); ok {
		return m[field]
	}

	v := reflect.ValueOf(cmd)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	fv := v.FieldByName(field)
	if !fv.IsValid() || !fv.CanInterface() {
		return nil
	}
	return fv.Interface()
}

// fold 对文本值做大小写折叠，非文本值原样返回
func fold(value any, enabled bool) any {
	if !enabled {
		return value
	}
	switch s := value.(type) {
	case string:
		return strings.ToLower(s)
	case *string:
		if s == nil {
			return nil
		}
		return strings.ToLower(*s)
	default:
		return value
	}
}

// canonical 将解析出的值编码为稳定的存储形式
//
// JSON 编码保证复合值列表与非字符串标量有唯一字节表示，
// 各适配器之间可以互相识别同一个值。
func canonical(value any) string {
	b, err := json.Marshal(value)
	if err != nil {
		// 不可序列化的值退化为 fmt 表示，保持确定性
		return fmt.Sprint(value)
	}
	return string(b)
}
