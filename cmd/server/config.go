package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Bind        string
	Port        int
	DatabaseURL string
	WordFile    string
	TurnTimer   time.Duration
	Verbose     bool
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.TurnTimer < 0 {
		return fmt.Errorf("turn timer cannot be negative: %v", c.TurnTimer)
	}
	return nil
}

func (c *Config) addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("CODENAMES")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "codenames-server",
		Short:         "Realtime multiplayer Codenames backend.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: CODENAMES_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: CODENAMES_PORT)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "postgres DSN for game history; empty disables persistence (env: CODENAMES_DATABASE_URL)")
	fs.StringVar(&cfg.WordFile, "word-file", "", "path to a word list, one word per line; empty uses the built-in pool (env: CODENAMES_WORD_FILE)")
	fs.DurationVar(&cfg.TurnTimer, "turn-timer", 0, "time a team gets to finish guessing; zero disables the timer (env: CODENAMES_TURN_TIMER)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "development logging (env: CODENAMES_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("codenames-server v{{.Version}}\n")

	return cmd
}
