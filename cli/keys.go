package cli

import (
	"fmt"
	"os"

	"github.com/absmach/secagg/pkg/crypto"
	"github.com/spf13/cobra"
)

var cmdKeys = []cobra.Command{
	{
		Use:   "generate",
		Short: "Generate a shared key",
		Long:  "Generate a random 32-byte shared key, hex encoded, for the protocol.shared_key setting",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			key, err := crypto.GenerateKey()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			cmd.Println(key)
		},
	},
	{
		Use:   "fingerprint <key>",
		Short: "Show the fingerprint of a shared key",
		Long:  "Show the key id logged by servers and clients for the given key and cipher",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			key, err := crypto.ParseKey(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			alg, _ := cmd.Flags().GetString("cipher")
			c, err := crypto.NewShareCipher(key, alg)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, map[string]string{"key_id": c.KeyID(), "cipher": c.Algorithm()})
		},
	},
	{
		Use:   "encrypt <key> <in> <out>",
		Short: "Encrypt a file with a shared key",
		Long:  "Encrypt a file with AES-256-GCM under a shared key, e.g. to ship an initial model",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 3 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			if err := transformFile(args[0], args[1], args[2], crypto.Encrypt); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	},
	{
		Use:   "decrypt <key> <in> <out>",
		Short: "Decrypt a file with a shared key",
		Long:  "Decrypt a file produced by the encrypt command",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 3 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			if err := transformFile(args[0], args[1], args[2], crypto.Decrypt); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	},
}

func transformFile(hexKey, in, out string, fn func(data, key []byte) ([]byte, error)) error {
	key, err := crypto.ParseKey(hexKey)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", in, err)
	}

	res, err := fn(data, key)
	if err != nil {
		return err
	}

	return os.WriteFile(out, res, 0o600)
}

func NewKeysCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "keys [generate | fingerprint | encrypt | decrypt]",
		Short: "Shared key management",
		Long:  "Generate and use the shared symmetric key of a deployment",
	}

	for i := range cmdKeys {
		cmd.AddCommand(&cmdKeys[i])
	}

	if cmdKeys[1].Flags().Lookup("cipher") == nil {
		cmdKeys[1].Flags().StringP("cipher", "c", crypto.AlgAESGCM, "Share cipher")
	}

	return &cmd
}
