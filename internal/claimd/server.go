// Package claimd 唯一性声明服务 HTTP 接口
//
// 为非 Go 调用方提供评估/释放能力：
//   - POST /api/v1/evaluate  评估命令唯一性（通过则声明成交）
//   - POST /api/v1/release   释放命令的全部声明
//   - GET  /health           健康检查
//   - GET  /metrics          Prometheus 指标
//
// 规则来源于配置（claims.rules），按命令类型注册进规则注册表；
// 请求体为带显式类型标识的命令（uniqueness.TypedCommand）。
package claimd

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"claimd/internal/config"
	"claimd/internal/uniqueness"
	"claimd/pkg/logging"
)

// Handler 声明服务 HTTP 处理器
type Handler struct {
	checker *uniqueness.Checker
	logger  *logging.Logger
}

// NewHandler 创建声明服务处理器
func NewHandler(checker *uniqueness.Checker, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default("claimd")
	}
	return &Handler{checker: checker, logger: logger}
}

// Router 返回配置好的 HTTP 路由
func (h *Handler) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/evaluate", h.Evaluate)
	mux.HandleFunc("POST /api/v1/release", h.Release)
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// BuildRegistry 从配置规则构建规则注册表
//
// 同一命令类型的多条规则合并为一个来源；owner 取自请求命令的
// owner 字段（无主规则忽略）。
func BuildRegistry(rules []config.RuleConfig) *uniqueness.Registry {
	byType := make(map[string][]config.RuleConfig)
	for _, r := range rules {
		byType[r.CommandType] = append(byType[r.CommandType], r)
	}

	reg := uniqueness.NewRegistry()
	for cmdType, typeRules := range byType {
		rs := typeRules
		reg.RegisterFunc(cmdType, func(cmd any) []uniqueness.Descriptor {
			owner := ""
			if tc, ok := cmd.(uniqueness.TypedCommand); ok {
				owner = tc.Owner
			}

			descriptors := make([]uniqueness.Descriptor, 0, len(rs))
			for _, r := range rs {
				opts := uniqueness.Options{
					Label:     r.Label,
					Partition: r.Partition,
					NoOwner:   r.NoOwner,
				}
				if r.IgnoreCase {
					opts.IgnoreCase = uniqueness.FoldAll()
				} else if len(r.FoldFields) > 0 {
					opts.IgnoreCase = uniqueness.FoldFields(r.FoldFields...)
				}
				descriptors = append(descriptors,
					uniqueness.Composite(r.Fields, r.Message, owner, opts))
			}
			return descriptors
		})
	}
	return reg
}
