package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/version"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alepar/aquamon/aquamon/config"
	"github.com/alepar/aquamon/aquamon/monitor"
	"github.com/alepar/aquamon/aquamon/report"
	"github.com/alepar/aquamon/aquamon/transport"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:          "aquamon",
		Short:        "Monitor pond water quality and report forecast risks",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := setupLogging(cfg.Log); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	// CLI args, each overriding the config file when set
	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	f.String("listen-address", defaults.HTTP.ListenAddress, "The address to listen on for HTTP requests.")
	f.String("transport", defaults.Sensor.Transport, "sensor transport: serial, tcp, ble or mqtt")
	f.String("address", defaults.Sensor.Address, "serial device, host:port, BLE address or MQTT broker URL")
	f.Int("baud", defaults.Sensor.BaudRate, "serial line rate")
	f.Int("window", defaults.Monitor.WindowSize, "number of readings the trend model looks at")
	f.Duration("read-int", defaults.Monitor.Interval.D(), "time interval between sensor reads")
	f.String("log-level", defaults.Log.Level, "log level")
	f.Bool("log-json", defaults.Log.JSON, "log as JSON")

	cmd.AddCommand(newScanCmd(), newVersionCmd())
	return cmd
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("listen-address") {
		cfg.HTTP.ListenAddress, _ = f.GetString("listen-address")
	}
	if f.Changed("transport") {
		cfg.Sensor.Transport, _ = f.GetString("transport")
	}
	if f.Changed("address") {
		cfg.Sensor.Address, _ = f.GetString("address")
	}
	if f.Changed("baud") {
		cfg.Sensor.BaudRate, _ = f.GetInt("baud")
	}
	if f.Changed("window") {
		cfg.Monitor.WindowSize, _ = f.GetInt("window")
	}
	if f.Changed("read-int") {
		d, _ := f.GetDuration("read-int")
		cfg.Monitor.Interval = config.Duration(d)
	}
	if f.Changed("log-level") {
		cfg.Log.Level, _ = f.GetString("log-level")
	}
	if f.Changed("log-json") {
		cfg.Log.JSON, _ = f.GetBool("log-json")
	}
}

func setupLogging(cfg config.Log) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	if cfg.JSON {
		log.SetFormatter(&log.JSONFormatter{})
		return nil
	}
	formatter := &log.TextFormatter{
		FullTimestamp: true,
	}
	log.SetFormatter(formatter)
	return nil
}

func run(ctx context.Context, cfg config.Config) error {
	log.Info("initializing system")

	tr, err := buildTransport(cfg.Sensor)
	if err != nil {
		return err
	}
	converter, inputs, err := buildConverter(cfg.Regression)
	if err != nil {
		return err
	}
	if cfg.Sensor.Fields == 0 {
		cfg.Sensor.Fields = inputs
	}
	predictor, err := buildPredictor(cfg.Sequence, cfg.Monitor.WindowSize)
	if err != nil {
		return err
	}
	generator, err := buildGenerator(ctx, cfg.Generation)
	if err != nil {
		return err
	}
	sink, closeSinks, err := buildSink(cfg.Sinks)
	if err != nil {
		return err
	}
	defer closeSinks()
	log.Info("models loaded")

	// Add Go module build info.
	prometheus.MustRegister(collectors.NewBuildInfoCollector())
	metrics := monitor.NewMetrics(prometheus.DefaultRegisterer)

	mon := monitor.New(monitorConfig(cfg), tr, converter, predictor,
		&report.Synthesizer{
			Generator: generator,
			Template:  report.Template(cfg.Generation.Template),
			Site:      cfg.Generation.Site,
		}, sink,
		monitor.WithMetrics(metrics))

	srv := &http.Server{
		Addr:              cfg.HTTP.ListenAddress,
		Handler:           newRouter(mon, prometheus.DefaultGatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("serving metrics on %s", cfg.HTTP.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("http server failed: %s", err)
		}
	}()

	err = mon.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return err
}

func monitorConfig(cfg config.Config) monitor.Config {
	return monitor.Config{
		WindowSize:    cfg.Monitor.WindowSize,
		Interval:      cfg.Monitor.Interval.D(),
		IdleInterval:  cfg.Monitor.IdleInterval.D(),
		ReadTimeout:   cfg.Sensor.ReadTimeout.D(),
		Fields:        cfg.Sensor.Fields,
		ErrorPause:    cfg.Monitor.ErrorPause.D(),
		BackoffMin:    cfg.Monitor.BackoffMin.D(),
		BackoffMax:    cfg.Monitor.BackoffMax.D(),
		BackoffJitter: 0.2,
	}
}

func newScanCmd() *cobra.Command {
	var (
		useBle       bool
		scanDuration time.Duration
		retries      int
		namePrefix   string
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List serial ports and, with --ble, nearby BLE sensor boards",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := transport.ListSerialPorts()
			if err != nil {
				log.Errorf("failed to list serial ports: %s", err)
			}
			for _, p := range ports {
				fmt.Fprintf(cmd.OutOrStdout(), "serial\t%s\n", p)
			}
			if !useBle {
				return nil
			}

			scanner := transport.BleScanner{
				ScanDuration: scanDuration,
				Retries:      retries,
				NamePrefix:   namePrefix,
			}
			devices, err := scanner.Scan()
			if err != nil {
				return err
			}
			addrs := make([]string, 0, len(devices))
			for addr := range devices {
				addrs = append(addrs, addr)
			}
			sort.Strings(addrs)
			for _, addr := range addrs {
				d := devices[addr]
				fmt.Fprintf(cmd.OutOrStdout(), "ble\t%s\t%s\t%d dBm\n", d.Addr, d.Name, d.RSSI)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&useBle, "ble", false, "also scan for BLE UART peripherals")
	cmd.Flags().DurationVar(&scanDuration, "scan-dur", 5000*time.Millisecond, "scan duration")
	cmd.Flags().IntVar(&retries, "retries", 5, "max number of tries in case of BLE errors")
	cmd.Flags().StringVar(&namePrefix, "name-prefix", "", "also match devices whose name starts with this")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Print("aquamon"))
		},
	}
}
