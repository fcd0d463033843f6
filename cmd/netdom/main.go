package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/tessen/netdom/internal/collector"
	"codeberg.org/tessen/netdom/internal/collector/ifdom"
	"codeberg.org/tessen/netdom/internal/config"
	"codeberg.org/tessen/netdom/internal/device"
	"codeberg.org/tessen/netdom/internal/device/eapi"
	"codeberg.org/tessen/netdom/internal/device/iosssh"
	"codeberg.org/tessen/netdom/internal/device/nxapi"
	"codeberg.org/tessen/netdom/internal/errors"
	"codeberg.org/tessen/netdom/internal/exporter"
	"codeberg.org/tessen/netdom/internal/inventory"
	"codeberg.org/tessen/netdom/internal/logger"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug().Msg("Config loaded")
}

func main() {
	records, err := inventory.Load(cfg.Defaults.Inventory)
	if err != nil {
		fatal(err)
	}

	limiter := exporter.NewLimiter(int64(cfg.Export.MaxInflight))
	exporters, err := exporter.Build(cfg, limiter)
	if err != nil {
		fatal(err)
	}

	defs := []*collector.Definition{buildIfdom(cfg)}

	sinks := make([]collector.Exporter, 0, len(exporters))
	for _, exp := range exporters {
		sinks = append(sinks, exp)
	}

	exec := collector.NewExecutor(time.Duration(cfg.Defaults.Interval)*time.Second, sinks...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	creds := device.Credentials{
		Username: cfg.Defaults.Credentials.Username,
		Password: cfg.Defaults.Credentials.Password,
	}

	for _, rec := range records {
		dev, err := newDevice(rec)
		if err != nil {
			logError(err)
			continue
		}

		// One independent task per device: a device that cannot log in is
		// excluded for the process lifetime while the rest of the fleet
		// proceeds.
		go func(dev *device.Device) {
			if err := exec.StartDevice(ctx, dev, creds, defs...); err != nil {
				logError(err)
			}
		}(dev)
	}

	<-ctx.Done()
	exec.Wait()

	for _, exp := range exporters {
		if err := exp.Close(); err != nil {
			logError(err)
		}
	}
	logger.Info().Msg("Exiting...")
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

// newDevice resolves an inventory record to a live device with its vendor
// session. An os_name without a driver is fatal for that device only.
func newDevice(rec inventory.Record) (*device.Device, error) {
	var (
		variant device.Variant
		session device.Session
	)

	switch rec.OSName {
	case "eos", "arista.eos":
		variant = device.VariantEOS
		session = eapi.NewSession(rec.Host, eapi.Options{InsecureTLS: true})
	case "nxos", "cisco.nxapi":
		variant = device.VariantNXAPI
		session = nxapi.NewSession(rec.Host, nxapi.Options{InsecureTLS: true})
	case "ios", "cisco.ios":
		variant = device.VariantIOS
		session = iosssh.NewSession(rec.Host, iosssh.Options{})
	default:
		return nil, errors.New().WithData(errors.ErrUnknownDriver, struct {
			Host   string
			OSName string
		}{rec.Host, rec.OSName})
	}

	return &device.Device{
		Name:    rec.Host,
		Host:    rec.Host,
		Tags:    rec.Tags,
		Variant: variant,
		Session: session,
	}, nil
}

func buildIfdom(cfg *config.Config) *collector.Definition {
	ifdomCfg := ifdom.DefaultConfig()
	ifdomCfg.Interval = cfg.CollectorInterval(ifdom.CollectorName)

	if col, ok := cfg.Collectors[ifdom.CollectorName]; ok {
		if col.ExcludeAdminDown != nil {
			ifdomCfg.ExcludeAdminDown = *col.ExcludeAdminDown
		}
		ifdomCfg.ExcludeLinkDown = col.ExcludeLinkDown
	}

	return ifdom.New(ifdomCfg)
}

func fatal(err error) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.FatalWithCode(appErr).Send()
		return
	}
	logger.Fatal().Err(err).Send()
}

func logError(err error) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.ErrorWithCode(appErr).Send()
		return
	}
	logger.Error().Err(err).Send()
}
