package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tanpawarit/table-reservation-agent/api"
	configx "github.com/tanpawarit/table-reservation-agent/pkg/config"
)

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			httpCfg, err := configx.New[api.Config]("HTTP")
			if err != nil {
				return fmt.Errorf("load http config: %w", err)
			}

			a, err := newApp(ctx, migrate)
			if err != nil {
				return err
			}
			defer a.Close()

			gin.SetMode(gin.ReleaseMode)
			deps := api.Deps{
				Agent:  a.agent,
				Store:  a.store,
				Health: a.db,
				Config: *httpCfg,
			}
			if a.events != nil {
				deps.Events = a.events
			}

			server := &http.Server{
				Addr:    httpCfg.Addr,
				Handler: api.NewRouter(deps),
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", httpCfg.Addr).Msg("http: listening")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("http: shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "create missing tables on startup")
	return cmd
}
