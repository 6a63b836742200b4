package main

import (
	"github.com/spf13/cobra"

	"uniactor/config"
	"uniactor/logutil"
)

// rootOptions 是所有子命令共享的选项。
type rootOptions struct {
	configFile string
	logLevel   string

	cfg *config.Config
}

func (o *rootOptions) addFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.configFile, "config", "", "Path of the TOML configuration file")
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")
}

// complete 加载配置并初始化日志。
func (o *rootOptions) complete() error {
	cfg := config.Default()
	if o.configFile != "" {
		loaded, err := config.Load(o.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Adjust(); err != nil {
		return err
	}
	if err := logutil.InitLogger(cfg.Log); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// newCmdRoot 创建 uniactor 根命令。
func newCmdRoot() *cobra.Command {
	o := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "uniactor",
		Short:         "Inspect registered types, convert messages between text and binary, run a local echo actor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return o.complete()
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	o.addFlags(cmd)
	cmd.AddCommand(
		newCmdTypes(),
		newCmdEncode(),
		newCmdDecode(),
		newCmdEcho(o),
	)
	return cmd
}
