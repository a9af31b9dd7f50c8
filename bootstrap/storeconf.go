package bootstrap

import (
	"strconv"
	"strings"
)

// 模板中的占位符，replica 渲染时替换为 primary 的地址
const (
	PlaceholderPrimaryHost = "%primary-host%"
	PlaceholderPrimaryPort = "%primary-port%"
)

// StoreOptions 渲染存储配置所需的参数
type StoreOptions struct {
	// Replica 为 true 时按 replica 渲染，PrimaryHost/PrimaryPort 生效
	Replica     bool
	PrimaryHost string
	PrimaryPort int

	// Secret 非空时写入 requirepass 和 masterauth
	Secret string
}

// RenderStoreOptions 基于模板渲染 redis-server 配置
//
// replica：替换占位符，模板中没有 replicaof 时追加一行。
// primary：丢弃模板中的 replicaof/slaveof 以及带占位符的行。
// 已存在的 requirepass/masterauth 会被替换，不会重复出现。
func RenderStoreOptions(template string, opts StoreOptions) string {
	lines := strings.Split(strings.TrimRight(template, "\n"), "\n")
	if template == "" {
		lines = nil
	}

	port := strconv.Itoa(opts.PrimaryPort)
	out := make([]string, 0, len(lines)+3)
	hasReplicaOf := false
	for _, line := range lines {
		d := directive(line)
		if !opts.Replica {
			if d == "replicaof" || d == "slaveof" || hasPlaceholder(line) {
				continue
			}
			out = append(out, line)
			continue
		}

		line = strings.ReplaceAll(line, PlaceholderPrimaryHost, opts.PrimaryHost)
		line = strings.ReplaceAll(line, PlaceholderPrimaryPort, port)
		if d == "replicaof" || d == "slaveof" {
			hasReplicaOf = true
		}
		out = append(out, line)
	}

	if opts.Replica && !hasReplicaOf {
		out = append(out, "replicaof "+opts.PrimaryHost+" "+port)
	}
	if opts.Secret != "" {
		out = setDirective(out, "requirepass", quoteArg(opts.Secret))
		out = setDirective(out, "masterauth", quoteArg(opts.Secret))
	}
	return strings.Join(out, "\n") + "\n"
}

func hasPlaceholder(line string) bool {
	return strings.Contains(line, PlaceholderPrimaryHost) || strings.Contains(line, PlaceholderPrimaryPort)
}

// setDirective 用 "name value" 替换所有同名指令，不存在时追加
func setDirective(lines []string, name, value string) []string {
	out := lines[:0]
	for _, line := range lines {
		if directive(line) != name {
			out = append(out, line)
		}
	}
	return append(out, name+" "+value)
}
