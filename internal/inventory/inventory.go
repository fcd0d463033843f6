// Package inventory loads the device inventory file: a CSV with a header
// row, required host and os_name columns, and any further columns merged
// into the device's exported tags.
package inventory

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"codeberg.org/tessen/netdom/internal/errors"
	"codeberg.org/tessen/netdom/internal/logger"
)

type Record struct {
	Host   string
	OSName string
	Tags   map[string]string
}

func Load(path string) ([]Record, error) {
	errFactory := errors.New()

	f, err := os.Open(path)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInventoryLoad, err)
	}
	defer f.Close()

	return parse(f, path)
}

func parse(r io.Reader, source string) ([]Record, error) {
	errFactory := errors.New()

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInventoryLoad, err)
	}

	hostCol, osCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "host":
			hostCol = i
		case "os_name":
			osCol = i
		}
	}
	if hostCol < 0 || osCol < 0 {
		return nil, errFactory.WithData(errors.ErrInventoryLoad, struct {
			Source string
			Reason string
		}{source, "missing required host/os_name columns"})
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed row skips that one device, not the fleet.
			logger.Warn().Err(err).Str("inventory", source).Msg("skipping malformed inventory row")
			continue
		}

		host := strings.TrimSpace(row[hostCol])
		osName := strings.TrimSpace(row[osCol])
		if host == "" || osName == "" {
			logger.Warn().Str("inventory", source).Msg("skipping inventory row without host or os_name")
			continue
		}

		tags := make(map[string]string)
		for i, value := range row {
			if i == hostCol || i == osCol || i >= len(header) {
				continue
			}
			key := strings.TrimSpace(header[i])
			value = strings.TrimSpace(value)
			if key == "" || value == "" {
				continue
			}
			tags[key] = value
		}

		records = append(records, Record{Host: host, OSName: osName, Tags: tags})
	}

	return records, nil
}
