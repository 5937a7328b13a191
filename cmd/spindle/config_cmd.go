package main

import (
	"encoding/json"
	"fmt"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"
)

type configParams struct {
	ConfigDir string `optional:"true" help:"Configuration directory (default: ~/.config/spindle)."`
}

type configInitParams struct {
	ConfigDir string `optional:"true" help:"Configuration directory (default: ~/.config/spindle)."`
	Force     bool   `short:"f" optional:"true" help:"Overwrite an existing config file."`
}

func configCmd() *cobra.Command {
	return boa.CmdT[boa.NoParams]{
		Use:   "config",
		Short: "Manage the configuration file",
		SubCmds: []*cobra.Command{
			configInitCmd(),
			configShowCmd(),
		},
	}.ToCobra()
}

func configInitCmd() *cobra.Command {
	return boa.CmdT[configInitParams]{
		Use:         "init",
		Short:       "Write the default configuration",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *configInitParams, cmd *cobra.Command, args []string) {
			configMgr, err := loadConfig(params.ConfigDir)
			if err != nil {
				fail(err)
			}
			if configMgr.Exists() && !params.Force {
				fail(fmt.Errorf("%s already exists, use --force to overwrite", configMgr.GetPath()))
			}
			if err := configMgr.Save(); err != nil {
				fail(err)
			}
			fmt.Println(configMgr.GetPath())
		},
	}.ToCobra()
}

func configShowCmd() *cobra.Command {
	return boa.CmdT[configParams]{
		Use:         "show",
		Short:       "Print the effective configuration",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *configParams, cmd *cobra.Command, args []string) {
			configMgr, err := loadConfig(params.ConfigDir)
			if err != nil {
				fail(err)
			}
			cfg := configMgr.Get()
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				fail(err)
			}
			fmt.Printf("# %s\n%s\n", configMgr.GetPath(), data)
		},
	}.ToCobra()
}
