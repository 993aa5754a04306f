package main

import (
	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/applyform/internal/server"
	"github.com/gabrielmiguelok/applyform/pkg/logging"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the application form",
		Long: `Serve the application form over HTTP.

The form page is rendered on the first request and then driven over a
WebSocket session. Resume uploads, health probes and the browser runtime
are served from the same address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			logging.SetDefault(logger)

			srv, err := server.New(server.Options{Config: *cfg, Logger: logger, Version: version})
			if err != nil {
				return err
			}
			logger.Info("starting applyform",
				logging.String("version", version),
				logging.String("codec", cfg.Codec),
				logging.Bool("lookups", cfg.LookupsEnabled),
				logging.Bool("webhook", cfg.WebhookURL != ""))
			return srv.Run(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.StringP("address", "a", "", "Listen address, e.g. :8080")
	f.String("webhook-url", "", "Deliver submitted applications to this URL")
	f.String("codec", "", "Wire codec for clients without a subprotocol: json or msgpack")
	f.String("phone-region", "", "Region assumed for phone numbers without a country code")
	f.String("time-zone", "", "Time zone preselected on the address step")
	f.Bool("lookups-enabled", true, "Enable GitHub, portfolio and address lookups")
	return cmd
}
