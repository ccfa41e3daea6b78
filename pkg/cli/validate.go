package cli

import (
	"github.com/echsylon/atlantis/pkg/mock"
	"github.com/spf13/cobra"
)

var validateConfigPath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file without starting the server",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfigPath, "config", "c", "", "Path to mock configuration file (JSON or YAML) [required]")
	_ = validateCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := mock.LoadFile(validateConfigPath)
	if err != nil {
		return err
	}

	templates := cfg.Templates()
	cmd.Printf("%s: OK (%d templates", validateConfigPath, len(templates))
	if url := cfg.FallbackBaseURL(); url != "" {
		cmd.Printf(", fallback %s", url)
	}
	cmd.Println(")")

	for _, t := range templates {
		cmd.Printf("  %-7s %s (%d responses)\n", t.Method, t.URL, len(t.Responses))
	}
	return nil
}
