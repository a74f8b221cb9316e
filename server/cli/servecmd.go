package cli

import (
	"context"
	"fmt"
	"math"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/metal-stack/clientdir/addr"
	"github.com/metal-stack/clientdir/directory"
	"github.com/metal-stack/clientdir/server"
	"github.com/metal-stack/v"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the client directory server",
	Long: `Serve binds the listen address and answers directory requests until
it receives SIGINT or SIGTERM.

Secrets are better passed through the environment than on the command
line: CLIENTDIR_ADMIN_KEY and CLIENTDIR_CLIENT_PASSWORD.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configFrom(viper.GetViper())
		if err != nil {
			fatalf("invalid configuration: %s", err)
		}
		log, err := server.NewLogger(cfg.Debug)
		if err != nil {
			fatalf("unable to create logger: %s", err)
		}
		defer func() { _ = log.Sync() }()

		reg, err := directory.NewRegistry(cfg.Settings)
		if err != nil {
			fatalf("unable to create registry: %s", err)
		}
		s := &server.Server{
			Registry:       reg,
			Address:        cfg.ListenAddr,
			MetricsAddress: cfg.MetricsAddr,
			MaxConnections: cfg.MaxConnections,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			Log:            log,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Infow("starting clientdir", "version", v.V.String())
		if err := s.Serve(ctx); err != nil {
			log.Errorw("server failed", "error", err)
			_ = log.Sync()
			os.Exit(1)
		}
		log.Infow("clientdir stopped")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen-addr", "127.0.0.1:4000", "IPv4 address and port to listen on, admin requests are only accepted from this host")
	serveCmd.Flags().String("admin-key", "", "admin key, at most 32 ASCII characters")
	serveCmd.Flags().String("client-password", "", "password clients must present")
	serveCmd.Flags().Int("capacity", 1024, "maximum number of clients in the directory")
	serveCmd.Flags().Int("list-size", 20, "maximum number of clients in one lookup reply")
	serveCmd.Flags().Int("drop-votes", 3, "distinct client votes needed to drop an IP")
	serveCmd.Flags().Bool("drop-verification", true, "only count drop votes from clients registered in the directory")
	serveCmd.Flags().Int("max-connections", 64, "connections served at once, 0 for no limit")
	serveCmd.Flags().Duration("read-timeout", 5*time.Second, "deadline for reading a request, 0 for none")
	serveCmd.Flags().Duration("write-timeout", 5*time.Second, "deadline for writing a reply, 0 for none")
	serveCmd.Flags().String("metrics-addr", "", "address to serve prometheus metrics on, empty to disable")
	serveCmd.Flags().Bool("debug", false, "enable debug logging")

	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		fatalf("unable to bind flags: %s", err)
	}
}

// config is the validated configuration of the serve command.
type config struct {
	ListenAddr     string
	MetricsAddr    string
	MaxConnections int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Debug          bool

	directory.Settings
}

func configFrom(vp *viper.Viper) (*config, error) {
	listenAddr := vp.GetString("listen-addr")
	if err := checkListenAddr(listenAddr); err != nil {
		return nil, fmt.Errorf("listen-addr: %w", err)
	}

	capacity, err := uint16Setting(vp, "capacity")
	if err != nil {
		return nil, err
	}
	listSize, err := uint16Setting(vp, "list-size")
	if err != nil {
		return nil, err
	}
	dropVotes := vp.GetInt("drop-votes")
	if dropVotes < 1 || dropVotes > math.MaxUint8 {
		return nil, fmt.Errorf("drop-votes: %d is not between 1 and %d", dropVotes, math.MaxUint8)
	}
	maxConns := vp.GetInt("max-connections")
	if maxConns < 0 {
		return nil, fmt.Errorf("max-connections: %d is negative", maxConns)
	}
	readTimeout := vp.GetDuration("read-timeout")
	writeTimeout := vp.GetDuration("write-timeout")
	if readTimeout < 0 || writeTimeout < 0 {
		return nil, fmt.Errorf("timeouts must not be negative")
	}

	cfg := &config{
		ListenAddr:     listenAddr,
		MetricsAddr:    vp.GetString("metrics-addr"),
		MaxConnections: maxConns,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		Debug:          vp.GetBool("debug"),
		Settings: directory.Settings{
			AdminKey:         vp.GetString("admin-key"),
			ClientPassword:   vp.GetString("client-password"),
			Capacity:         capacity,
			ListSize:         listSize,
			DropVotes:        uint8(dropVotes),
			DropVerification: vp.GetBool("drop-verification"),
		},
	}
	if cfg.ClientPassword == "" {
		return nil, fmt.Errorf("client-password must be set")
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func checkListenAddr(s string) error {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return err
	}
	if _, err := addr.ParseIPv4(host); err != nil {
		return err
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}

func uint16Setting(vp *viper.Viper, key string) (uint16, error) {
	n := vp.GetInt(key)
	if n < 0 || n > math.MaxUint16 {
		return 0, fmt.Errorf("%s: %d is not between 0 and %d", key, n, math.MaxUint16)
	}
	return uint16(n), nil
}
