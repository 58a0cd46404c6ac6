package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "log/slog"

	"github.com/spf13/cobra"

	"github.com/sharedcode/keydb"
	"github.com/sharedcode/keydb/redis"
	"github.com/sharedcode/keydb/restapi"
)

type globalFlags struct {
	configPath string
	url        string
}

func newRootCommand() *cobra.Command {
	var gf globalFlags
	root := &cobra.Command{
		Use:          "keydbctl",
		Short:        "Inspect and repair a keydb store",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&gf.configPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&gf.url, "url", "", "store URL, overrides the config file")

	root.AddCommand(
		newHeightCommand(&gf),
		newGetCommand(&gf),
		newPutCommand(&gf),
		newDelCommand(&gf),
		newStampCommand(&gf),
		newServeCommand(&gf),
	)
	return root
}

func (gf *globalFlags) config() (fileConfig, error) {
	cfg, err := loadConfig(gf.configPath)
	if err != nil {
		return cfg, err
	}
	if gf.url != "" {
		cfg.Store.URL = gf.url
	}
	if cfg.LogLevel != "" {
		if err := keydb.ConfigureLogging(cfg.LogLevel); err != nil {
			return cfg, fmt.Errorf("config log_level: %w", err)
		}
	}
	return cfg, nil
}

// openAdapter opens the store, waiting for it with bounded backoff.
func (gf *globalFlags) openAdapter(ctx context.Context) (*redis.Adapter, fileConfig, error) {
	cfg, err := gf.config()
	if err != nil {
		return nil, cfg, err
	}
	opts, err := cfg.options()
	if err != nil {
		return nil, cfg, err
	}
	var a *redis.Adapter
	err = keydb.Retry(ctx, cfg.StartupRetries, func(ctx context.Context) error {
		var err error
		a, err = redis.Open(ctx, opts)
		return err
	}, nil)
	if err != nil {
		return nil, cfg, err
	}
	return a, cfg, nil
}

func decodeHexArg(name, s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%s %q is not hex: %w", name, s, err)
	}
	return b, nil
}

func newHeightCommand(gf *globalFlags) *cobra.Command {
	var start uint32
	cmd := &cobra.Command{
		Use:   "height",
		Short: "Print the committed height, or --start when none is recorded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := gf.openAdapter(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			h, err := a.RecoverHeight(cmd.Context(), start)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&start, "start", 0, "height to report when none is recorded")
	return cmd
}

func newGetCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <hexkey>",
		Short: "Print the hex encoded value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := decodeHexArg("key", args[0])
			if err != nil {
				return err
			}
			a, _, err := gf.openAdapter(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			v, found, err := a.Get(cmd.Context(), key)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("key %s not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(v))
			return nil
		},
	}
}

func newPutCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "put <hexkey> <hexvalue>",
		Short: "Set a key outside any batch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := decodeHexArg("key", args[0])
			if err != nil {
				return err
			}
			value, err := decodeHexArg("value", args[1])
			if err != nil {
				return err
			}
			a, _, err := gf.openAdapter(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Put(cmd.Context(), key, value)
		},
	}
}

func newDelCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "del <hexkey>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := decodeHexArg("key", args[0])
			if err != nil {
				return err
			}
			a, _, err := gf.openAdapter(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Delete(cmd.Context(), key)
		},
	}
}

func newStampCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stamp <height>",
		Short: "Commit an empty batch at height, moving the committed height there",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("height %q: %w", args[0], err)
			}
			a, _, err := gf.openAdapter(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			a.SetHeight(uint32(h))
			if err := a.Write(cmd.Context(), a.NewBatch()); err != nil {
				return err
			}
			log.Info("Height stamped", "height", h)
			return nil
		},
	}
}

func newServeCommand(gf *globalFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, cfg, err := gf.openAdapter(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if _, err := a.RecoverHeight(ctx, 0); err != nil {
				return err
			}
			if listen == "" {
				listen = cfg.Listen
			}

			router, err := restapi.NewRouter(restapi.NewServer(a), restapi.EnvTokenVerifier())
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: listen, Handler: router}
			errCh := make(chan error, 1)
			go func() {
				log.Info("REST API listening", "addr", listen)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			log.Info("Shutting down REST API")
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides the config file")
	return cmd
}
