package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/leadscope/leadscope/internal/utils"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	 _                _                           
	| | ___  __ _  __| |___  ___ ___  _ __   ___ 
	| |/ _ \/ _' |/ _' / __|/ __/ _ \| '_ \ / _ \
	| |  __/ (_| | (_| \__ \ (_| (_) | |_) |  __/
	|_|\___|\__,_|\__,_|___/\___\___/| .__/ \___|
	                                 |_|         

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "leadscope",
	Short: "Score, qualify and query B2B sales leads.",
	Long: LOGO + `leadscope keeps a scored collection of sales leads and lets you explore it
from the command line, over HTTP, or through a chat session that answers
structured questions locally and hands everything else to an AI assistant.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.leadscope.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("db", "", "Path to the SQLite lead database (default "+utils.DefaultDBPath+")")
	viper.BindPFlag("db.path", rootCmd.PersistentFlags().Lookup("db"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// API keys usually live in a .env next to where leadscope runs.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error reading .env: %s\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".leadscope")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("leadscope")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults before a missing config file gets written out with them.
	viper.SetDefault("db.lock_timeout", "0s")
	viper.SetDefault("ai.provider", "xai")
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.model", "")
	viper.SetDefault("ai.endpoint", "")
	viper.SetDefault("ai.timeout", "60s")
	viper.SetDefault("ai.max_retries", 2)
	viper.SetDefault("ai.snapshot_limit", 200)
	viper.SetDefault("scoring.qualified_threshold", 60.0)
	viper.SetDefault("scoring.hot_threshold", 85.0)
	viper.SetDefault("scoring.weights.company_size", 25.0)
	viper.SetDefault("scoring.weights.budget", 30.0)
	viper.SetDefault("scoring.weights.authority", 20.0)
	viper.SetDefault("scoring.weights.need", 15.0)
	viper.SetDefault("scoring.weights.timeline", 10.0)
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.leadscope.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Error reading config: %s\n", err)
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	if err := utils.SetLogLevel(levelString); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
