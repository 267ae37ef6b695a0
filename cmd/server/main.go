// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Corphon/ScriptCraftAI/internal/app"
	"github.com/Corphon/ScriptCraftAI/internal/config"
	"github.com/Corphon/ScriptCraftAI/internal/llm"
	"github.com/Corphon/ScriptCraftAI/internal/storage"
	"github.com/Corphon/ScriptCraftAI/internal/utils"

	_ "github.com/Corphon/ScriptCraftAI/internal/llm/providers/anthropic"
	_ "github.com/Corphon/ScriptCraftAI/internal/llm/providers/google"
	_ "github.com/Corphon/ScriptCraftAI/internal/llm/providers/openai"
	_ "github.com/Corphon/ScriptCraftAI/internal/llm/providers/qwen"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "scriptcraft",
		Short:         "短视频脚本生成服务",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newProvidersCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP API 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	return a.Run(ctx)
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "同步数据库表结构后退出",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}

			db, err := app.OpenDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer storage.Close(db)

			if err := storage.Migrate(ctx, db); err != nil {
				return fmt.Errorf("同步表结构失败: %w", err)
			}
			utils.GetLogger().Info("表结构已同步", nil)
			return nil
		},
	}
}

func newProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "列出可用的AI提供者及其模型",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range llm.ListProviders() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%v\n", name, llm.GetSupportedModelsForProvider(name))
			}
			return nil
		},
	}
}
