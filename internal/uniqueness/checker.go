// Package uniqueness 占用编排状态机
//
// checker.go 实现评估核心：单趟遍历全部规则、不提前退出，
// 记录本次评估产生的占用；只要有任何规则失败，整批占用在返回前
// 全部补偿释放，存储净效果回到评估开始前的状态。
package uniqueness

import (
	"context"
	"errors"
	"time"

	"claimd/internal/shared/claimstore"
	"claimd/pkg/logging"
)

// ============================================================================
// 配置与结果
// ============================================================================

// Config 编排器配置
//
// 显式传入而非读全局状态，便于测试时换用进程内存储。
type Config struct {
	// DefaultPartition 进程级默认分区，空则用 claimstore.DefaultPartition
	DefaultPartition string

	// PartitionByCommandType 未显式指定分区时按命令类型派生
	PartitionByCommandType bool
}

// FieldError 单条规则失败的 (标签, 错误消息)
type FieldError struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// Result 一次评估的结果
//
// Errors 为空即通过；非空时按规约顺序每条失败规则一项。
type Result struct {
	Errors []FieldError `json:"errors,omitempty"`
}

// Ok 返回评估是否通过
func (r Result) Ok() bool {
	return len(r.Errors) == 0
}

// ============================================================================
// Checker
// ============================================================================

// Checker 唯一性检查编排器
//
// 单次评估内严格串行处理规则（补偿释放依赖精确知道本次评估占了什么），
// 不同评估之间可以跨 goroutine 并发，跨评估协调全部交给 ClaimStore。
// Checker 自身不在评估之间保留可变状态。
type Checker struct {
	store   claimstore.ClaimStore
	rules   *Registry
	cfg     Config
	logger  *logging.Logger
	metrics *Metrics
}

// NewChecker 创建编排器
//
// store 为 nil 时进入"视为唯一"降级模式：所有评估直接通过并
// 记一条警告日志（可用性优先于严格性）。
func NewChecker(store claimstore.ClaimStore, rules *Registry, cfg Config, logger *logging.Logger) *Checker {
	if cfg.DefaultPartition == "" {
		cfg.DefaultPartition = claimstore.DefaultPartition
	}
	if logger == nil {
		logger = logging.Default("uniqueness")
	}
	return &Checker{store: store, rules: rules, cfg: cfg, logger: logger}
}

// WithMetrics 挂载指标收集器
func (c *Checker) WithMetrics(m *Metrics) *Checker {
	c.metrics = m
	return c
}

// partitionFor 规则分区解析：显式覆盖 > 按命令类型派生 > 进程默认
func (c *Checker) partitionFor(d Descriptor, cmd any) string {
	if d.Options.Partition != "" {
		return d.Options.Partition
	}
	if c.cfg.PartitionByCommandType {
		if t := CommandType(cmd); t != "" {
			return t
		}
	}
	return c.cfg.DefaultPartition
}

// Evaluate 评估命令的全部唯一性规则
//
// 每条规则依规约顺序：解析 (key, value) 与分区，尝试占用，
// 占用成功且配置了外部校验时执行校验。失败只记错误、继续下一条，
// 让调用方一次拿到完整错误清单。全部规则处理完后：
// 无错误则本次占用全部成交；有错误则逐条补偿释放后返回 Rejected。
func (c *Checker) Evaluate(ctx context.Context, cmd any) Result {
	cmdType := CommandType(cmd)

	if c.store == nil {
		c.logger.Warn("No claim store configured, assuming unique",
			"command_type", cmdType)
		return Result{}
	}

	start := time.Now()
	descriptors := c.rules.DescriptorsFor(cmd)

	var committed []claimstore.Record
	var fieldErrors []FieldError

	for _, d := range descriptors {
		d = normalize(d)
		key, value := resolve(cmd, d)
		canon := canonical(value)
		partition := c.partitionFor(d, cmd)

		var err error
		if d.Options.NoOwner {
			err = c.store.ClaimValue(ctx, key, canon, partition)
		} else {
			err = c.store.Claim(ctx, key, canon, d.Owner, partition)
		}
		if err != nil {
			// 占用失败统一映射为本条规则不唯一；具体错误种类只进日志
			c.metrics.claimAttempt("conflict")
			if !errors.Is(err, claimstore.ErrAlreadyClaimed) {
				c.logger.WithError(err).Error("Claim attempt failed",
					"command_type", cmdType, "claim_key", key, "partition", partition)
			}
			fieldErrors = append(fieldErrors, FieldError{Label: d.Label(), Message: d.Message})
			continue
		}
		c.metrics.claimAttempt("ok")

		if d.Options.IsUnique != nil && !d.Options.IsUnique(ctx, key, value, d.Owner, d.Options) {
			// 外部校验否决：只补偿本条占用，已成交的其他占用不动
			c.releaseOne(ctx, claimstore.Record{
				Key: key, Value: canon, Owner: d.Owner,
				Partition: partition, NoOwner: d.Options.NoOwner,
			})
			c.metrics.verifierReject()
			fieldErrors = append(fieldErrors, FieldError{Label: d.Label(), Message: d.Message})
			continue
		}

		committed = append(committed, claimstore.Record{
			Key: key, Value: canon, Owner: d.Owner,
			Partition: partition, NoOwner: d.Options.NoOwner,
		})
	}

	if len(fieldErrors) > 0 {
		for _, rec := range committed {
			c.releaseOne(ctx, rec)
			c.metrics.rollbackRelease()
		}
		c.metrics.evaluation("rejected", time.Since(start))
		return Result{Errors: fieldErrors}
	}

	c.metrics.evaluation("ok", time.Since(start))
	return Result{}
}

// releaseOne 补偿释放单条占用
//
// 释放是尽力而为：评估结论已定，适配器错误不再上抛，
// 记日志供运营侧核对遗留声明。
func (c *Checker) releaseOne(ctx context.Context, rec claimstore.Record) {
	var err error
	if rec.NoOwner {
		err = c.store.ReleaseByValue(ctx, rec.Key, rec.Value, rec.Partition)
	} else {
		err = c.store.Release(ctx, rec.Key, rec.Value, rec.Owner, rec.Partition)
	}
	if err != nil {
		c.logger.WithError(err).Warn("Compensating release failed",
			"claim_key", rec.Key, "partition", rec.Partition, "owner", rec.Owner)
	}
}

// Release 释放命令全部规则对应的占用
//
// 命令的聚合被删除或校验失败不再需要保留声明时调用。
// 带 owner 的规则按 owner 释放（无需重算值），无主规则按值释放。
func (c *Checker) Release(ctx context.Context, cmd any) error {
	if c.store == nil {
		return nil
	}

	var errs []error
	for _, d := range c.rules.DescriptorsFor(cmd) {
		d = normalize(d)
		key, value := resolve(cmd, d)
		partition := c.partitionFor(d, cmd)

		var err error
		if d.Options.NoOwner {
			err = c.store.ReleaseByValue(ctx, key, canonical(value), partition)
		} else {
			err = c.store.ReleaseByOwner(ctx, key, d.Owner, partition)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
