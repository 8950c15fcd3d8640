package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grovetools/canopy/cli"
	"github.com/grovetools/canopy/config"
	"github.com/grovetools/canopy/schema"
)

// NewConfigCmd returns the config command with subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate the canopy configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigValidateCmd())
	cmd.AddCommand(newConfigExportCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration that the daemon would run with,
after defaults are applied.

Examples:
  canopy config show
  canopy -c ./canopy.yml config show`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			path, err := cli.InitConfig(configFile)
			if err != nil {
				return err
			}

			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			if path != "" {
				fmt.Printf("# Source: %s\n", path)
			} else {
				fmt.Println("# Source: built-in defaults (no canopy.yml found)")
			}

			data, err := cfg.ToYAML()
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a configuration file against the schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *config.Config
			var err error
			var source string

			if len(args) == 1 {
				source = args[0]
				cfg, err = config.Load(source)
			} else {
				configFile, _ := cmd.Flags().GetString("config")
				source, err = cli.InitConfig(configFile)
				if err != nil {
					return err
				}
				if source == "" {
					return fmt.Errorf("no canopy.yml found to validate")
				}
				cfg, err = config.Load(source)
			}
			if err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			validator, err := schema.NewValidator()
			if err != nil {
				return err
			}
			if err := validator.Validate(cfg); err != nil {
				return err
			}

			fmt.Printf("%s is valid\n", source)
			return nil
		},
	}
}

func newConfigExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the effective configuration in another format",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			format, _ := cmd.Flags().GetString("format")
			var data []byte
			switch format {
			case "toml":
				data, err = cfg.ToTOML()
			case "yaml", "yml":
				data, err = cfg.ToYAML()
			default:
				return fmt.Errorf("unsupported format %q (yaml, toml)", format)
			}
			if err != nil {
				return err
			}

			_, err = os.Stdout.Write(data)
			return err
		},
	}

	cmd.Flags().String("format", "yaml", "Output format: yaml, toml")
	return cmd
}
