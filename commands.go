package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"hospital-booking-server/internal/config"
	"hospital-booking-server/internal/metrics"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/notify"
	"hospital-booking-server/internal/routes"
	"hospital-booking-server/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the no-show sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The in-memory store starts empty on every run.
	if a.cfg.Database.Driver == "memory" {
		if err := seedFirstAdmin(ctx, a); err != nil {
			return err
		}
	}

	if !a.cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.NewRouter(routes.Deps{
		Services: a.svc,
		Store:    a.store,
		Config:   a.cfg,
		Log:      a.log,
		Metrics:  a.metrics,
	})

	go runSweeper(ctx, a.svc.Queue, a.cfg.Clinic.NoShowSweepInterval, a.log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", a.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server running", zap.String("port", a.cfg.Port), zap.String("db_driver", a.cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// runSweeper marks expired calls as no-shows on every tick until ctx is done.
func runSweeper(ctx context.Context, queue *services.QueueService, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		log.Info("no-show sweeper disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := queue.SweepNoShows(ctx)
			if err != nil {
				log.Error("no-show sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("no-show sweep", zap.Int("marked", n))
			}
		}
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			if cfg.Database.Driver == "memory" {
				return errors.New("nothing to migrate for DB_DRIVER=memory")
			}
			db, err := models.InitDB(models.DatabaseConfig{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
			if err != nil {
				return fmt.Errorf("error connecting to database: %w", err)
			}
			if err := models.AutoMigrate(db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("Database migrated successfully.")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the first system administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()
			return seedFirstAdmin(cmd.Context(), a)
		},
	}
}

func seedFirstAdmin(ctx context.Context, a *app) error {
	admin, created, err := a.svc.Accounts.SeedFirstAdmin(ctx, a.cfg.FirstAdmin.Username, a.cfg.FirstAdmin.Password)
	if err != nil {
		return fmt.Errorf("seed first admin: %w", err)
	}
	if created {
		a.log.Info("first admin created", zap.Stringp("login_id", admin.LoginID))
	} else {
		a.log.Info("first admin already exists", zap.Stringp("login_id", admin.LoginID))
	}
	return nil
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-no-shows",
		Short: "Mark called patients past the grace period as no-shows once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.svc.Queue.SweepNoShows(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Marked %d no-show(s).\n", n)
			return nil
		},
	}
}

func queueWatchCmd() *cobra.Command {
	var source, from string
	cmd := &cobra.Command{
		Use:   "queue-watch",
		Short: "Print queue events from the Redis stream or the MQTT display boards",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			show := func(where string, e notify.Event) {
				fmt.Fprintf(out, "%s %-22s %-38s number=%s waiting=%d %s\n",
					e.OccurredAt.Format(time.RFC3339), e.Kind, where, e.CurrentNumber, e.WaitingCount, e.Message)
			}

			switch source {
			case "redis":
				client, err := connectRedis(ctx, cfg.Redis)
				if err != nil {
					return err
				}
				defer client.Close()
				return notify.WatchStream(ctx, client, notify.DefaultStream, from, func(_ string, e notify.Event) {
					show(e.ScheduleID, e)
				})
			case "mqtt":
				if cfg.MQTT.Broker == "" {
					return errors.New("MQTT_BROKER is not set")
				}
				cfg.MQTT.ClientID += "-watch"
				client, err := notify.ConnectMQTT(cfg.MQTT)
				if err != nil {
					return err
				}
				defer client.Disconnect(250)
				if err := notify.WatchBoard(client, func(topic string, e notify.Event) { show(topic, e) }); err != nil {
					return err
				}
				<-ctx.Done()
				return nil
			default:
				return fmt.Errorf("unknown source %q: want redis or mqtt", source)
			}
		},
	}
	cmd.Flags().StringVar(&source, "source", "redis", "Event source: redis or mqtt")
	cmd.Flags().StringVar(&from, "from", "$", "Redis stream id to start after (0 replays the stream)")
	return cmd
}

// newMetrics is split out so commands that do not serve HTTP skip the registry.
func newMetrics(serving bool) *metrics.Metrics {
	if !serving {
		return nil
	}
	return metrics.New()
}
