package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/absmach/secagg/cli"
	"github.com/absmach/secagg/client"
	"github.com/spf13/cobra"
)

func main() {
	var (
		serverURL string
		timeout   time.Duration
	)

	rootCmd := &cobra.Command{
		Use:   "secagg-cli",
		Short: "secagg-cli is the command line tool of the secure aggregation server",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			sdk, err := client.NewHTTPSDK(client.SDKConfig{
				ServerURL: serverURL,
				Timeout:   timeout,
			})
			if err != nil {
				return err
			}
			cli.SetSDK(sdk)

			return nil
		},
	}

	rootCmd.AddCommand(cli.NewModelsCmd())
	rootCmd.AddCommand(cli.NewKeysCmd())
	rootCmd.AddCommand(cli.NewInitCmd())
	rootCmd.AddCommand(cli.NewWatchCmd())

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server-url", "s", envOr("SECAGG_CLIENT_SERVER_URL", "http://localhost:8080"), "Aggregation server URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "HTTP request timeout")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return def
}
