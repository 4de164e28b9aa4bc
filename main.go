package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"arenarelay/server"
)

// ArenaRelay 入口：单一共享对局的实时中继，另有 probe 子命令用于联调
func main() {
	// .env 可选，不存在时忽略
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "arenarelay",
		Usage: "relay server for a single shared real-time match",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "directory containing relay.yaml"},
			&cli.StringFlag{Name: "addr", Usage: "TCP listen address, e.g. :7777"},
			&cli.StringFlag{Name: "ws-addr", Usage: "WebSocket listen address (disabled when empty)"},
			&cli.StringFlag{Name: "admin-addr", Usage: "admin and metrics HTTP address (disabled when empty)"},
			&cli.StringFlag{Name: "log-file", Usage: "rolling log file path"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "quiet", Usage: "no console notices and no console logging"},
		},
		Action:   runRelay,
		Commands: []*cli.Command{probeCommand()},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runRelay(ctx context.Context, cmd *cli.Command) error {
	cfg, err := server.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	// 命令行显式给出的参数覆盖配置文件与环境变量
	if cmd.IsSet("addr") {
		cfg.Addr = cmd.String("addr")
	}
	if cmd.IsSet("ws-addr") {
		cfg.WSAddr = cmd.String("ws-addr")
	}
	if cmd.IsSet("admin-addr") {
		cfg.AdminAddr = cmd.String("admin-addr")
	}
	if cmd.IsSet("log-file") {
		cfg.Log.File = cmd.String("log-file")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.Bool("quiet") {
		cfg.Notices = false
		cfg.Log.Console = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := server.InitLogger(cfg.Log); err != nil {
		return err
	}
	defer server.SyncLogger()

	// 优雅退出（Ctrl+C）
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg)
	err = srv.ListenAndServe(ctx)
	server.Log.Info("Shutting down...")
	return err
}
