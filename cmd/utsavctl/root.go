package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	utsavAuth "github.com/sanghutsav/utsavAuth"
	"github.com/sanghutsav/utsavAuth/internal/logging"
	"github.com/sanghutsav/utsavAuth/session"
)

type options struct {
	configPath    string
	baseURL       string
	redisAddr     string
	storePath     string
	passphraseEnv string
	deviceID      string
	verbose       bool
}

// app holds the Service built in PersistentPreRunE for the running command.
type app struct {
	svc     *utsavAuth.Service
	out     io.Writer
	cleanup func()
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}
	a := &app{out: stdout, cleanup: func() {}}

	root := &cobra.Command{
		Use:           "utsavctl",
		Short:         "Manage a Sangh Utsav session from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := buildService(opts, stderr)
			if err != nil {
				return err
			}
			a.svc = svc
			a.cleanup = cleanup
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file (UTSAV_* env vars override it)")
	flags.StringVar(&opts.baseURL, "base-url", "", "registration API base URL")
	flags.StringVar(&opts.redisAddr, "redis", "", "Redis address for the durable session tier")
	flags.StringVar(&opts.storePath, "store", "", "session file when --redis is not set (default <config dir>/utsavctl/session.yaml)")
	flags.StringVar(&opts.passphraseEnv, "passphrase-env", "UTSAV_PASSPHRASE", "environment variable holding the passphrase that seals the session file")
	flags.StringVar(&opts.deviceID, "device", "", "device namespace for the session")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging on stderr")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newStatusCmd(a),
		newWhoamiCmd(a),
		newRestoreCmd(a),
		newPermissionsCmd(a),
		newRegisterCmd(a),
		newOpenCmd(a),
	)
	return root
}

func buildService(opts *options, stderr io.Writer) (*utsavAuth.Service, func(), error) {
	cfg, err := utsavAuth.LoadConfig(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.baseURL != "" {
		cfg.Backend.BaseURL = opts.baseURL
	}
	if opts.deviceID != "" {
		cfg.Session.DeviceID = opts.deviceID
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logger := logging.NewWithWriter("utsavctl", level, "text", stderr)
	builder := utsavAuth.New().
		WithConfig(cfg).
		WithLogger(logger)

	cleanup := func() {}
	if opts.redisAddr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{opts.redisAddr}})
		builder.WithRedis(client)
		cleanup = func() { _ = client.Close() }
	} else {
		store, err := fileStore(opts, logger)
		if err != nil {
			return nil, nil, err
		}
		builder.WithDurableStore(store)
	}

	svc, err := builder.Build()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, func() {
		svc.Close()
		cleanup()
	}, nil
}

// fileStore opens the YAML session file, sealed when the passphrase variable is set.
// The salt sits next to the file and is created on first use.
func fileStore(opts *options, logger *slog.Logger) (session.Store, error) {
	path := opts.storePath
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locate config dir: %w", err)
		}
		path = filepath.Join(dir, "utsavctl", "session.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	store := session.NewFileStore(path, session.WithFileLogger(logger))
	passphrase := ""
	if opts.passphraseEnv != "" {
		passphrase = os.Getenv(opts.passphraseEnv)
	}
	if passphrase == "" {
		return store, nil
	}

	salt, err := loadSalt(path + ".salt")
	if err != nil {
		return nil, err
	}
	key, err := session.KeyFromPassphrase(passphrase, salt)
	if err != nil {
		return nil, err
	}
	return session.NewSealedStore(store, key)
}

func loadSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil {
		return salt, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read salt: %w", err)
	}
	salt, err = session.NewSalt()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("write salt: %w", err)
	}
	return salt, nil
}
