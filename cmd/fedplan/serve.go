package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jensneuse/abstractlogger"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hanpama/fedplan/internal/eventbus"
	"github.com/hanpama/fedplan/internal/gateway"
	"github.com/hanpama/fedplan/internal/otel"
	"github.com/hanpama/fedplan/internal/plancache"
	"github.com/hanpama/fedplan/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve plans over HTTP at /graphql",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			h, err := a.handler()
			if err != nil {
				return err
			}
			eventbus.Use(eventbus.New())
			shutdown, err := otel.Setup(a.cfg.Otel.Endpoint, a.cfg.Otel.Service)
			if err != nil {
				return errors.Wrap(err, "otel setup")
			}
			defer func() { _ = shutdown(context.Background()) }()

			mux := http.NewServeMux()
			mux.Handle("/graphql", h)
			return a.listen(cmd.Context(), mux)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func (a *app) handler() (*server.Handler, error) {
	var opts []gateway.Option
	if a.cfg.Cache.Size > 0 {
		cache, err := plancache.New(a.cfg.Cache.Size)
		if err != nil {
			return nil, err
		}
		opts = append(opts, gateway.WithCache(cache))
	}
	gw, err := a.gateway(opts...)
	if err != nil {
		return nil, err
	}

	s := a.cfg.Server
	sopts := []server.Option{server.WithGraphiQL(s.GraphiQL)}
	if s.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if s.Timeout > 0 {
		sopts = append(sopts, server.WithTimeout(s.Timeout))
	}
	if s.MaxBodyBytes > 0 {
		sopts = append(sopts, server.WithMaxBodyBytes(s.MaxBodyBytes))
	}
	if len(s.CORS) > 0 {
		sopts = append(sopts, server.WithCORS(s.CORS...))
	}
	if s.PlanText {
		sopts = append(sopts, server.WithPlanText())
	}
	return server.New(gw, a.log, sopts...), nil
}

// listen serves h until ctx is done, then drains open requests.
func (a *app) listen(ctx context.Context, h http.Handler) error {
	srv := &http.Server{Addr: a.cfg.Server.Addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	a.log.Info("listening", abstractlogger.String("addr", a.cfg.Server.Addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
