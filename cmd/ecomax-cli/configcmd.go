package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/ecomax360/internal/config"
	"github.com/muurk/ecomax360/internal/transport"
)

var (
	forceInit bool
	showTOML  bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")
	configShowCmd.Flags().BoolVar(&showTOML, "toml", false, "Print as TOML instead of YAML")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

func targetConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file with one example controller.

Use --host/--port or --device to fill in the controller. The file is YAML
unless --config names a .toml file.`,
	Example: `  ecomax-cli config init --host 192.168.1.38
  ecomax-cli config init --config ./ecomax.toml --device /dev/ttyUSB0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := targetConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		}

		cfg := config.DefaultConfig()
		ctrl := cfg.Controllers[config.DefaultControllerName]
		if hostFlag != "" {
			ctrl.Host = hostFlag
		}
		if portFlag != 0 {
			ctrl.Port = portFlag
		}
		if deviceFlag != "" {
			ctrl.Transport = transport.KindSerial
			ctrl.Device = deviceFlag
			ctrl.Host = ""
			ctrl.Port = 0
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if outputFormat == formatJSON {
			return newPrinter(cmd).PrintJSON(cfg)
		}
		data, err := cfg.Marshal(showTOML)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := targetConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}
