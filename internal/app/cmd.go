package app

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// defaultEnvFile は--env-file未指定時に読み込む.envファイルのパス。
const defaultEnvFile = ".env"

// NewRootCommand はadhiraコマンドを生成する。
// サブコマンドを省略した場合はserveとして動作する。
func NewRootCommand(w io.Writer) *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "adhira",
		Short:         "Adhira marketplace authentication API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeCommand(cmd, w, envFile)
		},
	}
	root.SetOut(w)
	root.SetErr(w)

	root.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "path to a .env file (ignored if missing)")

	root.AddCommand(
		newServeCommand(w, &envFile),
		newMigrateCommand(w, &envFile),
		newHealthcheckCommand(),
	)

	return root
}

func newServeCommand(w io.Writer, envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeCommand(cmd, w, *envFile)
		},
	}
}

func newMigrateCommand(w io.Writer, envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := Init(w, *envFile)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			return runMigrate(cfg)
		},
	}
}

// newHealthcheckCommand はdistroless環境でのDockerヘルスチェック用サブコマンドを生成する。
// 設定全体は読み込まず、SERVER_PORTのみを参照する。
func newHealthcheckCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the running server's health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealthcheck(healthURL(port))
		},
	}

	defaultPort := os.Getenv("SERVER_PORT")
	if defaultPort == "" {
		defaultPort = "8080"
	}
	cmd.Flags().StringVar(&port, "port", defaultPort, "port the server listens on")

	return cmd
}

func runServeCommand(cmd *cobra.Command, w io.Writer, envFile string) error {
	cfg, err := Init(w, envFile)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	return runServe(cmd.Context(), cfg)
}

// healthURL はヘルスチェック先のURLを返す。
func healthURL(port string) string {
	return fmt.Sprintf("http://localhost:%s/api/auth/health", port)
}
