package serve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/dTxn/cmd/util"
	"github.com/ValentinKolb/dTxn/rpc/common"
	"github.com/ValentinKolb/dTxn/rpc/server"
	"github.com/ValentinKolb/dTxn/rpc/transport/http"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dTxn document server",
		Long:    `Start the dTxn document server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DTXN_<flag> (e.g. DTXN_LOG_LEVEL=debug)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "databases"
	ServeCmd.PersistentFlags().String(key, "db", cmdUtil.WrapString("Comma-separated list of databases created on startup. More can be created with PUT /{db}"))

	key = "engine"
	ServeCmd.PersistentFlags().String(key, string(common.EngineMaple), cmdUtil.WrapString("Storage engine of the databases (maple, redis)"))

	key = "redis-addr"
	ServeCmd.PersistentFlags().String(key, "localhost:6379", cmdUtil.WrapString("(redis engine) Address of the redis server"))

	key = "redis-password"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(redis engine) Password of the redis server"))

	key = "redis-db"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("(redis engine) Redis database number"))

	key = "snapshot-dir"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(maple engine) Directory for database snapshots. Snapshots are loaded on start and written on shutdown. Empty disables snapshots"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds of a single store operation"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:5984", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:5984)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse databases
	serveCmdConfig.Databases = nil
	for _, name := range strings.Split(viper.GetString("databases"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			serveCmdConfig.Databases = append(serveCmdConfig.Databases, name)
		}
	}

	// parse engine
	switch engine := common.Engine(viper.GetString("engine")); engine {
	case common.EngineMaple, common.EngineRedis:
		serveCmdConfig.Engine = engine
	default:
		return fmt.Errorf("invalid engine: %s (expected one of: maple, redis)", engine)
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Redis = common.RedisConfig{
		Addr:     viper.GetString("redis-addr"),
		Password: viper.GetString("redis-password"),
		DB:       viper.GetInt("redis-db"),
	}
	serveCmdConfig.SnapshotDir = viper.GetString("snapshot-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the document server and shuts it down on SIGINT/SIGTERM
func run(cmd *cobra.Command, _ []string) error {
	serv := server.NewDocServer(*serveCmdConfig, http.NewHttpServerTransport())
	server.Version = cmd.Root().Version

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		errCh <- serv.Serve()
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		server.Logger.Infof("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Join(serv.Shutdown(ctx), <-errCh)
}
