package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fixitug/fixit-admin/internal/auth"
	"github.com/fixitug/fixit-admin/internal/mailer"
	"github.com/fixitug/fixit-admin/internal/ratelimit"
	"github.com/fixitug/fixit-admin/internal/server"
	"github.com/fixitug/fixit-admin/internal/session"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin API server",
		Long:  "Start the HTTP server that exposes the OTP login endpoints, the session surface, and the worker verification API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	logLevel := slog.LevelInfo
	if dev {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	prod := production()

	// The session secret is the one piece of configuration the server
	// refuses to start without.
	sessions, err := session.NewManager(viper.GetString("session_secret"), prod)
	if err != nil {
		return fmt.Errorf("session manager: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	logger.Info("store initialized", "driver", viper.GetString("db_driver"))

	dispatcher := mailer.NewSMTP(
		viper.GetString("smtp_host"),
		viper.GetInt("smtp_port"),
		viper.GetString("smtp_username"),
		viper.GetString("smtp_password"),
	)
	mailFrom := viper.GetString("mail_from")
	if mailFrom == "" {
		mailFrom = "no-reply@fixit.ug"
	}

	authSvc := auth.NewService(logger, st, dispatcher, ratelimit.NewMemory(), mailFrom, prod)

	srvCfg := server.Config{
		Host:            host,
		Port:            port,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		Production:      prod,
	}
	if origins := viper.GetStringSlice("cors_origins"); len(origins) > 0 {
		srvCfg.CORSOrigins = origins
	}

	srv := server.New(srvCfg, st, authSvc, sessions, logger)

	fmt.Printf("→ FixIt Admin\n")
	fmt.Printf("→ Listening on http://%s:%d\n", host, port)
	fmt.Printf("→ Health:      http://%s:%d/healthz\n", host, port)
	fmt.Println()

	return srv.ListenAndServe()
}
