package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"Freelance-Autopilot/internal/config"
	"Freelance-Autopilot/pkg/logger"
)

// rootOptions 保存全局参数与加载后的配置。
type rootOptions struct {
	configPath string
	cfg        *config.Config
}

func defaultConfigPath() string {
	if path := os.Getenv("AUTOPILOT_CONFIG"); path != "" {
		return path
	}
	return filepath.Join("configs", "autopilot.yaml")
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "autopilotd",
		Short:         "Freelance autopilot decision engine",
		Long:          "Runs the Hunter, Collections, CFO, Productivity and Tax agents against a freelancer's data.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.Logging); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath(), "配置文件路径 (yaml 或 json)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))
	return cmd
}
