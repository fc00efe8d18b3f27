package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vocadrill/vocadrill/internal/profile"
	"github.com/vocadrill/vocadrill/internal/version"
	"github.com/vocadrill/vocadrill/server"
	"github.com/vocadrill/vocadrill/store"
	"github.com/vocadrill/vocadrill/store/db"
)

const greetingBanner = `
██╗   ██╗ ██████╗  ██████╗ █████╗ ██████╗ ██████╗ ██╗██╗     ██╗
██║   ██║██╔═══██╗██╔════╝██╔══██╗██╔══██╗██╔══██╗██║██║     ██║
██║   ██║██║   ██║██║     ███████║██║  ██║██████╔╝██║██║     ██║
╚██╗ ██╔╝██║   ██║██║     ██╔══██║██║  ██║██╔══██╗██║██║     ██║
 ╚████╔╝ ╚██████╔╝╚██████╗██║  ██║██████╔╝██║  ██║██║███████╗███████╗
  ╚═══╝   ╚═════╝  ╚═════╝╚═╝  ╚═╝╚═════╝ ╚═╝  ╚═╝╚═╝╚══════╝╚══════╝
`

var rootCmd = &cobra.Command{
	Use:   "vocadrill",
	Short: `A self-hosted spaced repetition server for vocabulary cards.`,
	Run: func(_cmd *cobra.Command, _args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		instanceProfile := &profile.Profile{
			Mode:        viper.GetString("mode"),
			Addr:        viper.GetString("addr"),
			Port:        viper.GetInt("port"),
			UNIXSock:    viper.GetString("unix-sock"),
			Data:        viper.GetString("data"),
			Driver:      viper.GetString("driver"),
			DSN:         viper.GetString("dsn"),
			InstanceURL: viper.GetString("instance-url"),
			Version:     version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if tz := viper.GetString("timezone"); tz != "" {
			instanceProfile.Timezone = tz
		}
		if err := instanceProfile.Validate(); err != nil {
			cancel()
			slog.Error("invalid profile", slog.String("error", err.Error()))
			return
		}

		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			cancel()
			slog.Error("failed to create db driver", slog.String("error", err.Error()))
			return
		}
		storeInstance := store.New(dbDriver, instanceProfile)
		if err := storeInstance.Migrate(ctx); err != nil {
			cancel()
			slog.Error("failed to migrate database", slog.String("error", err.Error()))
			return
		}

		s, err := server.NewServer(ctx, instanceProfile, storeInstance)
		if err != nil {
			cancel()
			slog.Error("failed to create server", slog.String("error", err.Error()))
			return
		}

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-c
			slog.Info("received signal, shutting down", slog.String("signal", sig.String()))
			s.Shutdown(ctx)
			cancel()
		}()

		printGreetings(instanceProfile)

		if err := s.Start(ctx); err != nil {
			if err != http.ErrServerClosed {
				slog.Error("failed to start server", slog.String("error", err.Error()))
				cancel()
			}
		}

		// Wait for shutdown to finish.
		<-ctx.Done()
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("unix-sock", "", "path to the unix socket, overrides --addr and --port")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver, can be "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")
	rootCmd.PersistentFlags().String("instance-url", "", "the url of your vocadrill instance, used in feed links")
	rootCmd.PersistentFlags().String("timezone", "", "IANA timezone for review day boundaries, defaults to the system timezone")

	for _, name := range []string{"mode", "addr", "port", "unix-sock", "data", "driver", "dsn", "instance-url", "timezone"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("vocadrill")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

func printGreetings(instanceProfile *profile.Profile) {
	fmt.Print(greetingBanner)
	if instanceProfile.UNIXSock != "" {
		fmt.Printf("Version %s has been started on unix socket %s\n", instanceProfile.Version, instanceProfile.UNIXSock)
	} else {
		fmt.Printf("Version %s has been started on port %d\n", instanceProfile.Version, instanceProfile.Port)
	}
	fmt.Printf("Mode %s, driver %s, data %s\n", instanceProfile.Mode, instanceProfile.Driver, instanceProfile.Data)
	if instanceProfile.InstanceURL != "" {
		fmt.Printf("Due feed: %s/feed/due.rss\n", instanceProfile.InstanceURL)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
