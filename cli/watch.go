package cli

import (
	"context"
	"time"

	"github.com/absmach/secagg/pkg/fl"
	"github.com/absmach/secagg/pkg/mqtt"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow aggregation events",
		Long:  "Subscribe to the server's MQTT topic and print every newly installed global model",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			url, _ := cmd.Flags().GetString("mqtt-url")
			topic, _ := cmd.Flags().GetString("topic")
			timeout, _ := cmd.Flags().GetDuration("broker-timeout")

			ps, err := mqtt.NewPubSub(mqtt.Config{
				URL:      url,
				ClientID: "secagg-cli-" + uuid.NewString()[:8],
				QoS:      1,
				Timeout:  timeout,
			}, cliLogger(cmd))
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			defer ps.Disconnect(context.Background())

			handler := mqtt.EventHandler(func(e fl.AggregationEvent) error {
				logJSONCmd(*cmd, e)

				return nil
			})
			if err := ps.Subscribe(cmd.Context(), topic, handler); err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			<-cmd.Context().Done()
		},
	}

	cmd.Flags().StringP("mqtt-url", "m", "tcp://localhost:1883", "MQTT broker URL")
	cmd.Flags().StringP("topic", "t", "secagg/models", "Aggregation event topic")
	cmd.Flags().Duration("broker-timeout", 10*time.Second, "Broker operation timeout")

	return cmd
}
