package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maxgio92/callident"
	"github.com/maxgio92/callident/internal/logfields"
	"github.com/maxgio92/callident/lift"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "callident [binary]",
	Short: "Identify function calls in an ELF executable",
	Long: `Lifts the .text section of an AMD64 or ARM64 ELF executable, identifies
the blocks ending with a function call and prints their call sites, return
sites and, optionally, the filtered control-flow graph.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runIdentify,
}

// Execute runs the root command. It is called by main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .callident.yaml)")
	flags.StringP("format", "f", formatText, "output format (text, json)")
	flags.IntP("parallel", "p", 0, "number of functions classified concurrently (0 = auto)")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.Bool("cfg", false, "include the filtered CFG edges in the report")
	cobra.CheckErr(viper.BindPFlags(flags))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".callident")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CALLIDENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := viper.ReadInConfig(); err == nil {
		logrus.WithField(logfields.File, viper.ConfigFileUsed()).Debug("Using config file")
	}
}

func runIdentify(cmd *cobra.Command, args []string) error {
	if viper.GetBool("verbose") {
		logrus.SetLevel(logrus.DebugLevel)
	}

	parallel := viper.GetInt("parallel")
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open binary: %w", err)
	}
	defer f.Close()

	m, err := lift.FromELF(f)
	if err != nil {
		return fmt.Errorf("failed to lift %s: %w", args[0], err)
	}

	p := callident.NewPass(callident.WithParallelism(parallel))
	if err := p.Run(m); err != nil {
		return err
	}

	rep := newReport(args[0], m, p, viper.GetBool("cfg"))
	return rep.write(cmd.OutOrStdout(), viper.GetString("format"))
}
