package bootstrap

import (
	"strconv"
	"strings"
)

// splitArgs 按 redis 配置文件的规则切分一行，支持双引号包裹的参数
func splitArgs(line string) ([]string, bool) {
	var (
		args []string
		rest = strings.TrimSpace(line)
	)
	for rest != "" {
		if rest[0] == '"' {
			end := closingQuote(rest)
			if end < 0 {
				return nil, false
			}
			arg, err := strconv.Unquote(rest[:end+1])
			if err != nil {
				return nil, false
			}
			args = append(args, arg)
			rest = strings.TrimSpace(rest[end+1:])
			continue
		}
		n := strings.IndexAny(rest, " \t")
		if n < 0 {
			args = append(args, rest)
			break
		}
		args = append(args, rest[:n])
		rest = strings.TrimSpace(rest[n:])
	}
	return args, true
}

func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

// quoteArg 参数含空白或引号时加上双引号
func quoteArg(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"'\\") {
		return strconv.Quote(s)
	}
	return s
}

// directive 返回配置行的指令名（小写），空行和注释返回空串
func directive(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || trimmed[0] == '#' {
		return ""
	}
	if n := strings.IndexAny(trimmed, " \t"); n > 0 {
		trimmed = trimmed[:n]
	}
	return strings.ToLower(trimmed)
}
