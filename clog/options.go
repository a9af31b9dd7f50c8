package clog

import "bytes"

// ContextField 定义从 Context 中提取字段的规则
type ContextField struct {
	Key       any    // Context 中存储的键
	FieldName string // 日志中的字段名
}

// Option 函数式选项，用于配置 Logger 实例
type Option func(*options)

// options 内部选项结构
type options struct {
	namespaceParts []string
	contextFields  []ContextField
	buffer         *bytes.Buffer // Output 为 "buffer" 时使用，测试用
}

// WithNamespace 设置日志命名空间，支持多级命名空间
//
// 命名空间以 "." 连接，作为日志中的 namespace 字段。
//
//	clog.WithNamespace("kvrole", "bootstrap") // namespace=kvrole.bootstrap
func WithNamespace(parts ...string) Option {
	return func(o *options) {
		o.namespaceParts = append(o.namespaceParts, parts...)
	}
}

// WithContextField 添加自定义的 Context 字段提取规则
func WithContextField(key any, fieldName string) Option {
	return func(o *options) {
		o.contextFields = append(o.contextFields, ContextField{
			Key:       key,
			FieldName: fieldName,
		})
	}
}

// WithBuffer 将日志写入指定缓冲区，需配合 Output: "buffer" 使用
func WithBuffer(buf *bytes.Buffer) Option {
	return func(o *options) {
		o.buffer = buf
	}
}

// applyOptions 应用所有选项并返回配置（内部使用）
func applyOptions(opts ...Option) *options {
	o := &options{
		namespaceParts: []string{},
		contextFields:  []ContextField{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
