package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SYNCNODE"

var (
	flagConfigFile string
	flagLogLevel   string
	log            zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "syncnode",
	Short: "Synchronize a finalized block chain with peers",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		lvl, err := zerolog.ParseLevel(strings.ToLower(viper.GetString("loglevel")))
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		log = log.Level(lvl)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfigFile, "config", "c", "", "optional YAML config file")
	rootCmd.PersistentFlags().StringVarP(&flagLogLevel, "loglevel", "l", "info", "level for logging output")
	bindFlags(rootCmd.PersistentFlags())

	log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	cobra.OnInitialize(initConfig)
}

// initConfig lets environment variables such as SYNCNODE_DATADIR and an
// optional config file override flag defaults.
func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if flagConfigFile == "" {
		return
	}
	viper.SetConfigFile(flagConfigFile)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal().Err(err).Str("file", flagConfigFile).Msg("could not read config file")
	}
}

// bindFlags makes every flag of the set readable through viper, so that
// environment variables and the config file override flag defaults.
func bindFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(f.Name, f); err != nil {
			panic(err)
		}
	})
}
