package cli

import (
	"fmt"
	"strconv"

	"github.com/absmach/secagg"
	"github.com/absmach/secagg/pkg/crypto"
	"github.com/absmach/secagg/pkg/sss"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

const defConfigPath = "config.toml"

// initAnswers are the settings collected by the init form.
type initAnswers struct {
	ServerURL       string
	AggregationGoal string
	NumShares       string
	Threshold       string
	Epsilon         string
	Sensitivity     string
	ModelDim        string
	Scheme          string
	Cipher          string
}

func defaultAnswers(cfg secagg.Config) initAnswers {
	p := cfg.Protocol

	return initAnswers{
		ServerURL:       cfg.Client.ServerURL,
		AggregationGoal: strconv.Itoa(p.AggregationGoal),
		NumShares:       strconv.Itoa(p.NumShares),
		Threshold:       strconv.Itoa(p.Threshold),
		Epsilon:         strconv.FormatFloat(p.Epsilon, 'g', -1, 64),
		Sensitivity:     strconv.FormatFloat(p.Sensitivity, 'g', -1, 64),
		ModelDim:        strconv.Itoa(p.ModelDim),
		Scheme:          p.Scheme,
		Cipher:          p.Cipher,
	}
}

func askAnswers(a *initAnswers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Server URL").Value(&a.ServerURL),
			huh.NewInput().Title("Clients per aggregation").Value(&a.AggregationGoal).Validate(positiveInt),
			huh.NewInput().Title("Model dimension").Value(&a.ModelDim).Validate(positiveInt),
		),
		huh.NewGroup(
			huh.NewInput().Title("Number of shares").Value(&a.NumShares).Validate(positiveInt),
			huh.NewInput().Title("Reconstruction threshold").Value(&a.Threshold).Validate(positiveInt),
			huh.NewSelect[string]().
				Title("Secret sharing scheme").
				Options(
					huh.NewOption("field (exact, GF(2^61-1))", sss.KindField.String()),
					huh.NewOption("real (compatibility)", sss.KindReal.String()),
				).
				Value(&a.Scheme),
			huh.NewSelect[string]().
				Title("Share cipher").
				Options(huh.NewOptions(crypto.AlgAESGCM, crypto.AlgXChaCha20Poly1305)...).
				Value(&a.Cipher),
		),
		huh.NewGroup(
			huh.NewInput().Title("Privacy budget epsilon").Value(&a.Epsilon).Validate(positiveFloat),
			huh.NewInput().Title("Sensitivity").Value(&a.Sensitivity).Validate(positiveFloat),
		),
	)

	return form.Run()
}

func positiveInt(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return fmt.Errorf("enter a positive integer")
	}

	return nil
}

func positiveFloat(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !(v > 0) {
		return fmt.Errorf("enter a positive number")
	}

	return nil
}

// buildConfig applies a to the defaults, generates a shared key and validates the result.
func buildConfig(a initAnswers) (secagg.Config, error) {
	cfg := secagg.DefaultConfig()

	var err error
	ints := []struct {
		raw string
		dst *int
	}{
		{a.AggregationGoal, &cfg.Protocol.AggregationGoal},
		{a.NumShares, &cfg.Protocol.NumShares},
		{a.Threshold, &cfg.Protocol.Threshold},
		{a.ModelDim, &cfg.Protocol.ModelDim},
	}
	for _, f := range ints {
		if *f.dst, err = strconv.Atoi(f.raw); err != nil {
			return secagg.Config{}, fmt.Errorf("invalid integer %q", f.raw)
		}
	}
	if cfg.Protocol.Epsilon, err = strconv.ParseFloat(a.Epsilon, 64); err != nil {
		return secagg.Config{}, fmt.Errorf("invalid epsilon %q", a.Epsilon)
	}
	if cfg.Protocol.Sensitivity, err = strconv.ParseFloat(a.Sensitivity, 64); err != nil {
		return secagg.Config{}, fmt.Errorf("invalid sensitivity %q", a.Sensitivity)
	}

	cfg.Client.ServerURL = a.ServerURL
	cfg.Protocol.Scheme = a.Scheme
	cfg.Protocol.Cipher = a.Cipher

	if cfg.Protocol.SharedKey, err = crypto.GenerateKey(); err != nil {
		return secagg.Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return secagg.Config{}, err
	}

	return cfg, nil
}

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create a configuration file",
		Long: "Create a TOML configuration file with a fresh shared key\n" +
			"Usage:\n" +
			"\tsecagg-cli init\n" +
			"\tsecagg-cli init deploy.toml --defaults\n",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) > 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			path := defConfigPath
			if len(args) == 1 {
				path = args[0]
			}

			answers := defaultAnswers(secagg.DefaultConfig())
			if useDefaults, _ := cmd.Flags().GetBool("defaults"); !useDefaults {
				if err := askAnswers(&answers); err != nil {
					logErrorCmd(*cmd, err)

					return
				}
			}

			cfg, err := buildConfig(answers)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			if err := cfg.Save(path); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, map[string]string{"config": path})
		},
	}

	cmd.Flags().BoolP("defaults", "d", false, "Skip the form and use default settings")

	return cmd
}
