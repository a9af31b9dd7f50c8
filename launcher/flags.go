package launcher

import (
	"github.com/spf13/pflag"
)

// NewFlagSet 定义命令行参数，参数名即配置 key，只有显式设置的参数会覆盖其他来源
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false

	fs.String("identity", "", "instance identity (default: hostname)")
	fs.String("address", "", "address peers use to reach this instance (default: identity)")
	fs.String("pool", "redis", "instance pool name")
	fs.Bool("role.primary", false, "force the primary role, skipping election")
	fs.Bool("role.witness", false, "force the witness role, skipping election")
	fs.Bool("dry-run", false, "print the handoff command instead of executing it")
	fs.String("created-at", "", "incarnation start time, passed to the publish subcommand (RFC3339)")
	fs.String("auth.password-file", "", "file containing the store password")
	fs.StringSlice("etcd.endpoints", nil, "etcd endpoints")
	fs.String("log.level", "info", "log level (debug|info|warn|error)")
	fs.String("log.format", "json", "log format (json|console)")

	// 参数名用连字符，配置 key 用下划线
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(normalizeFlag(name))
	})
	return fs
}

func normalizeFlag(name string) string {
	out := []byte(name)
	for i, c := range out {
		if c == '-' {
			out[i] = '_'
		}
	}
	return string(out)
}
