/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stdf2h5/stdf2h5/pkg/api"
	"github.com/stdf2h5/stdf2h5/pkg/converter"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the stdf2h5 REST API server. Clients create converter handles,
run conversions of files visible to the server and browse the catalog.

Every /api/v1 route requires the X-API-Key header. Run 'stdf2h5 init' to
create a config file with a generated key.

Examples:
  stdf2h5 serve
  stdf2h5 serve --port 9000 --input-dir /data/stdf
  stdf2h5 serve --api-key=mysecretkey --catalog-dir ./catalog`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("port") {
			cfg.Server.Port, _ = flags.GetInt("port")
		}
		if flags.Changed("bind") {
			cfg.Server.Bind, _ = flags.GetString("bind")
		}
		if flags.Changed("api-key") {
			cfg.Server.APIKey, _ = flags.GetString("api-key")
		}
		inputDir, _ := flags.GetString("input-dir")

		if cfg.Server.APIKey == "" {
			return errors.New("an API key is required: run 'stdf2h5 init' or pass --api-key")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		store, err := container.OpenCatalog(cfg)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
		}

		registry := converter.NewRegistry(container.ConverterOptions(cfg, store, logger))
		serverConfig := api.ServerConfig{
			Port:     cfg.Server.Port,
			Bind:     cfg.Server.Bind,
			APIKey:   cfg.Server.APIKey,
			InputDir: inputDir,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("serverStart", "bind", cfg.Server.Bind, "port", cfg.Server.Port, "catalog", store != nil)
		starter := container.GetServerFactory().CreateServerStarter()
		var catalogReader api.ICatalog
		if store != nil {
			catalogReader = store
		}
		return starter.StartServer(ctx, registry, catalogReader, serverConfig, container.Registry())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind")
	serveCmd.Flags().String("api-key", "", "API key for client authentication")
	serveCmd.Flags().String("input-dir", "", "Only convert files beneath this directory")
}
