package cli

import (
	"strconv"

	"github.com/absmach/secagg/client"
	"github.com/spf13/cobra"
)

var sdk client.SDK

// SetSDK sets the server SDK used by the commands.
func SetSDK(s client.SDK) {
	sdk = s
}

var cmdModels = []cobra.Command{
	{
		Use:   "get [version]",
		Short: "Get the current global model or a retained version",
		Long: "Get the current global model or a retained version\n" +
			"Usage:\n" +
			"\tsecagg-cli models get\n" +
			"\tsecagg-cli models get 3\n",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) > 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if len(args) == 0 {
				m, err := sdk.GetModel(cmd.Context())
				if err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				logJSONCmd(*cmd, m)

				return
			}

			version, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			m, err := sdk.ModelByVersion(cmd.Context(), version)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, m)
		},
	},
	{
		Use:   "list",
		Short: "List retained model versions",
		Long:  "List the model versions kept in the server's history, oldest first",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			versions, err := sdk.Models(cmd.Context())
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, map[string]any{"versions": versions, "total": len(versions)})
		},
	},
	{
		Use:   "status",
		Short: "Show aggregation progress",
		Long:  "Show the current model version and how many contributions are buffered",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			st, err := sdk.Status(cmd.Context())
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, st)
		},
	},
}

func NewModelsCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "models [get | list | status]",
		Short: "Global model inspection",
		Long:  "Inspect the global model held by the aggregation server",
	}

	for i := range cmdModels {
		cmd.AddCommand(&cmdModels[i])
	}

	return &cmd
}
