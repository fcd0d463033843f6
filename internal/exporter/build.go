package exporter

import (
	"codeberg.org/tessen/netdom/internal/config"
	"codeberg.org/tessen/netdom/internal/errors"
	"codeberg.org/tessen/netdom/internal/logger"
)

// Build constructs every exporter declared in the configuration, all sharing
// one in-flight limiter. An exporter type the switch does not know is an
// error here as well, not only in config validation.
func Build(cfg *config.Config, limiter *Limiter) ([]Exporter, error) {
	expCfg := Config{
		BackoffBase:   cfg.Export.BackoffBase,
		BackoffCap:    cfg.Export.BackoffCap,
		ExportTimeout: cfg.Export.ExportTimeout,
	}
	if expCfg.BackoffBase <= 0 {
		expCfg.BackoffBase = DefaultBackoffBase
	}
	if expCfg.BackoffCap <= 0 {
		expCfg.BackoffCap = DefaultBackoffCap
	}

	var exporters []Exporter
	for name, ec := range cfg.Exporters {
		var (
			exp Exporter
			err error
		)

		switch ec.Type {
		case "circonus":
			exp, err = NewCirconus(ec.URL, expCfg, limiter)
		case "influxdb":
			exp, err = NewInfluxDB(ec.ServerURL, ec.Database, expCfg, limiter)
		case "prometheus":
			exp = NewPrometheus(ec.Listen)
		case "journal":
			exp, err = NewJournal(JournalConfig{
				DBPath:    ec.Database,
				BatchSize: ec.BatchSize,
			})
		default:
			err = errors.New().WithMessage(errors.ErrInvalidConfig, "unknown exporter type").WithData(struct {
				Exporter string
				Type     string
			}{name, ec.Type})
		}
		if err != nil {
			return nil, err
		}

		logger.Info().Str("exporter", name).Str("type", ec.Type).Msg("exporter configured")
		exporters = append(exporters, exp)
	}

	return exporters, nil
}
