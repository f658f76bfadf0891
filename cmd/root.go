package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/imslice/internal/imageops"
	"github.com/kiesman99/imslice/internal/logging"
	"github.com/kiesman99/imslice/pkg/tile"
)

// Version is reported by `imslice --version` and the health endpoint.
var Version = "2.0.0"

// app holds state shared by every subcommand of one root command.
type app struct {
	v       *viper.Viper
	cfgFile string
	logger  *slog.Logger
}

// newRootCmd represents the base command when called without any subcommands
func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: logging.Nop()}

	rootCmd := &cobra.Command{
		Use:   "imslice",
		Short: "Cut images into tile grids and join tiles back together",
		Long: `imslice splits an image into a grid of tile files and reassembles tile
directories into a single image.

Tiles are named with a template holding {row} and {col} placeholders, by
default tile_{row}_{col}.png, so a sliced directory can be joined again
without extra metadata.

Examples:
  # Cut photo.jpg into 2 columns and 3 rows
  imslice slice photo.jpg tiles/ --grid 2,3

  # Cut into 12 tiles laid out as close to a square as possible
  imslice slice photo.jpg tiles/ -n 12

  # Cut into 256x256 tiles and upload them to S3
  imslice slice photo.jpg tiles/ -t 256,256 --upload --bucket my-tiles

  # Join the tiles back together
  imslice join tiles/ photo-joined.png

  # Start HTTP server
  imslice serve --port 8080`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.initConfig(cmd); err != nil {
				return err
			}
			a.logger = logging.New(a.v.GetString("log-level"), cmd.ErrOrStderr())
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.imslice.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug|info|warn|error)")
	_ = a.v.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(
		newSliceCmd(a),
		newJoinCmd(a),
		newPlanCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func (a *app) initConfig(cmd *cobra.Command) error {
	if a.cfgFile != "" {
		// Use config file from the flag.
		a.v.SetConfigFile(a.cfgFile)
	} else {
		// Search config in home directory with name ".imslice" (without extension).
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home)
		}
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".imslice")
	}

	// IMSLICE_S3_BUCKET overrides s3.bucket, IMSLICE_LOG_LEVEL overrides log-level
	a.v.SetEnvPrefix("IMSLICE")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", a.v.ConfigFileUsed())
	return nil
}

// bindFlags binds the running command's flags to viper keys. Binding
// happens per invocation because several subcommands share key names.
func (a *app) bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, flag := range keys {
		if err := a.v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// template parses the configured naming template. When encodable is set
// the template's extension must be one tiles can be written in.
func (a *app) template(encodable bool) (tile.Template, error) {
	tmpl, err := tile.ParseTemplate(a.v.GetString("format"))
	if err != nil {
		return tile.Template{}, err
	}
	if encodable {
		if err := imageops.CheckFormat(tmpl.Format(0, 0)); err != nil {
			return tile.Template{}, fmt.Errorf("%w: %w", tile.ErrInvalidTemplate, err)
		}
	}
	return tmpl, nil
}
