// Package cmd wires RAP's CLI surface: the worker's main entrypoint and the
// authcheck diagnostic subcommand, both built on cobra.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/couling/webdav-rap/internal/auth"
	"github.com/couling/webdav-rap/internal/config"
	"github.com/couling/webdav-rap/internal/dispatcher"
	"github.com/couling/webdav-rap/internal/mimetype"
	"github.com/couling/webdav-rap/internal/transport"
)

var logFile string

var rootCmd = &cobra.Command{
	Use:   "rap [pam-service] [mime-types-file]",
	Short: "WebDAV Request Authenticator/Processor worker",
	Long: `rap is spawned once per session by an unprivileged front-end, which has
already bound the control channel to a known file descriptor. It
authenticates the session through PAM, drops privileges to the
authenticated user, then serves WebDAV verbs over the control channel
until the front-end disconnects.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runRoot,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "path to a rotated log file (default: stderr)")
}

// Execute runs the root command; callers report any returned error and exit
// non-zero.
func Execute() error {
	return rootCmd.Execute()
}

func runRoot(_ *cobra.Command, args []string) error {
	var pamService, mimeTypesPath string
	if len(args) > 0 {
		pamService = args[0]
	}
	if len(args) > 1 {
		mimeTypesPath = args[1]
	}

	cfg, err := config.Load(pamService, mimeTypesPath)
	if err != nil {
		return fmt.Errorf("resolve configuration: %w", err)
	}

	log := newLogger(logFile)

	mimeReg, err := mimetype.Load(afero.NewOsFs(), cfg.MimeTypesPath)
	if err != nil {
		return fmt.Errorf("load mime registry from %s: %w", cfg.MimeTypesPath, err)
	}

	ch, err := transport.ChannelFromFD(cfg.ControlFD, log)
	if err != nil {
		return fmt.Errorf("adopt control channel: %w", err)
	}
	defer ch.Close()

	authr := auth.New(cfg.PamService, log)
	defer authr.Close()

	code := dispatcher.New(ch, mimeReg, authr, log).Run()
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// newLogger builds the structured logger used for the lifetime of the
// process. Without --log-file it writes to stderr; with it, output rotates
// through lumberjack with sane rotation defaults.
func newLogger(path string) *slog.Logger {
	if path == "" {
		return slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	return slog.New(slog.NewJSONHandler(w, nil))
}
