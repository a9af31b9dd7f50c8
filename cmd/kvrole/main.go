// kvrole 为 Redis + Sentinel 池中的实例决定角色并启动对应的存储进程。
//
//	kvrole [flags]          选举角色，渲染配置，exec 成 redis-server 或 redis-sentinel
//	kvrole publish [flags]  label publisher，由 kvrole 自动以子进程启动
//
// 配置来源：命令行参数 > KVROLE_* 环境变量 > .env > kvrole.yaml > 默认值。
// 退出码：0 交接成功，1 replica 未能连上 primary，2 配置或启动错误。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/ceyewan/kvrole/clog"
	"github.com/ceyewan/kvrole/config"
	"github.com/ceyewan/kvrole/launcher"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	publish := len(args) > 0 && args[0] == launcher.PublishCommand
	if publish {
		args = args[1:]
	}

	fs := launcher.NewFlagSet("kvrole")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return launcher.ExitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	loader, err := config.New(&config.Config{Name: "kvrole", EnvPrefix: "KVROLE"},
		config.WithDefaults(launcher.Defaults()),
		config.WithFlags(fs))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return launcher.ExitConfig
	}
	if err := loader.Load(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return launcher.ExitConfig
	}

	var cfg launcher.Config
	if err := loader.Unmarshal(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "decode config:", err)
		return launcher.ExitConfig
	}

	logger, err := clog.New(&cfg.Log, clog.WithNamespace("kvrole"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "create logger:", err)
		return launcher.ExitConfig
	}
	if file := loader.ConfigFileUsed(); file != "" {
		logger.Debug("configuration loaded", clog.String("file", file))
	}

	if publish {
		return launcher.RunPublisher(ctx, &cfg,
			launcher.WithLogger(logger),
			launcher.WithLoader(loader))
	}

	l, err := launcher.New(&cfg,
		launcher.WithLogger(logger),
		launcher.WithArgs(args))
	if err != nil {
		logger.Error("cannot create launcher", clog.Error(err))
		return launcher.ExitConfig
	}
	return l.Run(ctx)
}
