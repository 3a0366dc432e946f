package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/restaurant-reservation/internal/handler"
	"github.com/iliyamo/restaurant-reservation/internal/reservation"
	"github.com/iliyamo/restaurant-reservation/internal/router"
)

const shutdownTimeout = 15 * time.Second

type redisPinger struct{ a *app }

func (p redisPinger) PingContext(ctx context.Context) error { return p.a.rdb.Ping(ctx).Err() }

func newServeCmd() *cobra.Command {
	var withSweep bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := reservation.NewService(reservation.ServiceParams{
				Store:    a.reservations,
				Logger:   a.logg,
				Location: a.cfg.App.Location(),
				Notifier: a.publisher,
				Recorder: a.bookingMetrics,
			})
			if err != nil {
				return err
			}

			ready := map[string]handler.Pinger{"mysql": a.db}
			if a.rdb != nil {
				ready["redis"] = redisPinger{a}
			}
			e := router.New(router.Deps{
				Config:       a.cfg,
				Logger:       a.logg,
				Reservations: handler.NewReservationHandler(svc),
				Restaurants:  handler.NewRestaurantHandler(a.restaurants),
				Redis:        a.rdb,
				Gatherer:     a.registry,
				Ready:        ready,
			})

			c := cors.New(cors.Options{
				AllowedOrigins: a.cfg.CORS.AllowedOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
				AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
				ExposedHeaders: []string{"X-Request-ID", "X-Cache", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
			})
			srv := &http.Server{
				Addr:              ":" + a.cfg.App.Port,
				Handler:           c.Handler(e),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logg.Info(a.logg.WithField(gctx, "addr", srv.Addr), "http server listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if withSweep || a.cfg.Sweep.InProcess {
				sweep, err := a.sweepService()
				if err != nil {
					return err
				}
				g.Go(func() error {
					if err := sweep.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
						return err
					}
					return nil
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&withSweep, "with-sweep", false, "also run the expiry and reminder sweep in this process")
	return cmd
}
