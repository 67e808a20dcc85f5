package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/lkv/cmd/util"
	"github.com/ValentinKolb/lkv/rpc/common"
	"github.com/ValentinKolb/lkv/rpc/server"
	"github.com/fsnotify/fsnotify"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("cli")

var (
	serveCmdConfig = common.DefaultServerConfig()
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the lkv server",
		Long:    `Start the lkv server with the specified configuration. The configuration can be set via command line flags, environment variables or a config file. The format of the environment variables is LKV_<flag> (e.g. LKV_QUEUE_SIZE=64)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	defaults := common.DefaultServerConfig()

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, defaults.Transport.Endpoint, cmdUtil.WrapString("The address on which the server will listen (e.g. 0.0.0.0:6142 for tcp, /tmp/lkv.sock for unix)"))

	key = "queue-size"
	ServeCmd.PersistentFlags().Int(key, defaults.QueueSize, cmdUtil.WrapString("Capacity of the command queue of the store. Connections wait when it is full"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, defaults.TimeoutSecond, cmdUtil.WrapString("Read and write timeout of a connection in seconds, an idle connection is closed after it (0 disables it)"))

	key = "max-line-length"
	ServeCmd.PersistentFlags().Int(key, defaults.MaxLineLength, cmdUtil.WrapString("Longest accepted request line in bytes, longer lines close the connection"))

	key = "rate-limit"
	ServeCmd.PersistentFlags().Float64(key, 0, cmdUtil.WrapString("Requests per second allowed per remote host (0 disables rate limiting)"))

	key = "rate-burst"
	ServeCmd.PersistentFlags().Int(key, defaults.RateBurst, cmdUtil.WrapString("Burst size of the rate limit"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the http endpoint serving /metrics and /healthz (e.g. localhost:9100, empty disables it)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, defaults.LogLevel, cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "log-format"
	ServeCmd.PersistentFlags().String(key, defaults.LogFormat, cmdUtil.WrapString("Format of the log output (console, json)"))

	key = "log-file"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Write logs to this file instead of stdout. The file is rotated at 100MB"))

	key = "config"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional config file (yaml, json, toml, ...) with the same keys as the flags. Changes of log-level are applied while the server runs"))

	cmdUtil.SetupSocketFlags(ServeCmd)
}

// processConfig reads the configuration from the command line flags, environment variables
// and the optional config file and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Transport.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Transport.SocketConf, serveCmdConfig.Transport.TCPConf = cmdUtil.GetSocketConf()
	serveCmdConfig.QueueSize = viper.GetInt("queue-size")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MaxLineLength = viper.GetInt("max-line-length")
	serveCmdConfig.RateLimit = viper.GetFloat64("rate-limit")
	serveCmdConfig.RateBurst = viper.GetInt("rate-burst")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.LogFormat = viper.GetString("log-format")
	serveCmdConfig.LogFile = viper.GetString("log-file")

	return serveCmdConfig.Validate()
}

// run starts the lkv server and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(serveCmdConfig); err != nil {
		return err
	}
	defer common.SyncLoggers()

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	if viper.ConfigFileUsed() != "" {
		watchConfig()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serv := server.NewServer(serveCmdConfig, t)

	errCh := make(chan error, 1)
	go func() { errCh <- serv.Serve(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		Logger.Infof("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := serv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// watchConfig applies a changed log level from the config file without a restart
func watchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		level := viper.GetString("log-level")
		if err := common.SetLogLevel(level); err != nil {
			Logger.Warningf("Ignoring changed config %s: %v", e.Name, err)
			return
		}
		Logger.Infof("Config %s changed, log level is now %s", e.Name, level)
	})
	viper.WatchConfig()
}
