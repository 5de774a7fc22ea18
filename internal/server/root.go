package server

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/zhirschtritt/userposts/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Users and posts microservices",
	Long: `Runs one of the two services. Both read their configuration from the environment;
the posts service validates authors against the users service over HTTP.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serviceCmd("users", "Start the users service", config.ServiceUsers))
	rootCmd.AddCommand(serviceCmd("posts", "Start the posts service", config.ServicePosts))
}

func serviceCmd(use, short, service string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(service)
		},
	}
}

func startServer(service string) error {
	cfg, err := config.Load(service)
	if err != nil {
		return err
	}

	logger := config.NewLogger(cfg.Env, os.Stdout)
	logger.Info("configuration loaded",
		"service", cfg.Service,
		"port", cfg.Port,
		"db_host", cfg.DB.Host,
		"db_name", cfg.DB.Name,
		"event_consumer_type", cfg.EventConsumerType,
	)

	server, err := NewServer(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize server", "error", err)
		return err
	}

	return server.Start()
}
