package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"Freelance-Autopilot/internal/api"
	"Freelance-Autopilot/internal/dispatch"
	"Freelance-Autopilot/internal/observability/metrics"
	"Freelance-Autopilot/pkg/logger"
)

var timeNow = time.Now

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP API 与异步运行处理器",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := opts.cfg
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			queue, err := createQueue(ctx, cfg.Dispatch)
			if err != nil {
				return err
			}
			defer queue.Close()

			processor := dispatch.NewProcessor(a.orch, a.store, queue,
				dispatch.WithWorkerCount(cfg.Dispatch.Workers),
				dispatch.WithRunTimeout(cfg.Runtime.RunTimeout),
				dispatch.WithAlertDispatcher(a.alerts),
			)
			go func() {
				if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.L().Error("运行处理器异常退出", slog.Any("error", err))
				}
			}()

			if cfg.Metrics.Address != "" {
				go func() {
					if err := metrics.StartServer(ctx, cfg.Metrics.Address); err != nil && !errors.Is(err, context.Canceled) {
						logger.L().Error("指标服务异常退出", slog.Any("error", err))
					}
				}()
			}

			server := api.NewServer(cfg.Server.Address, a.orch,
				api.WithExecutor(a.exec),
				api.WithSubmitter(dispatch.NewService(queue)),
				api.WithRunHistory(a.store),
				api.WithAnalytics(a.analytics),
				api.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
			)
			logger.L().Info("autopilotd 已启动", slog.String("address", cfg.Server.Address))
			if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "为用户执行一次 Agent 评估并输出动作",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.cfg.Runtime.RunTimeout)
			defer cancel()
			result, err := a.orch.Run(ctx, userID)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "用户 ID (必填)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "输出用户的现金指标与税负估算",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			asOf := timeNow().UTC()
			m, err := a.analytics.Metrics(ctx, userID, asOf)
			if err != nil {
				return err
			}
			tax, err := a.analytics.TaxLiability(ctx, userID, asOf)
			if err != nil {
				return err
			}
			return printJSON(cmd, api.Stats{Metrics: m, Tax: tax})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "用户 ID (必填)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var (
		file  string
		shift bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "将 YAML/JSON 数据文件导入存储",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := os.MkdirAll(opts.cfg.Runtime.DataDir, 0o755); err != nil {
				return err
			}
			st, err := openStore(ctx, opts.cfg.Storage)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := seedFile(ctx, st, file, shift); err != nil {
				return err
			}
			cmd.Printf("已导入 %s\n", file)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "数据文件路径 (必填)")
	cmd.Flags().BoolVar(&shift, "shift", false, "按当前时间平移数据中的时间戳")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
