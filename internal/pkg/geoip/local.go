package geoip

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/oschwald/geoip2-golang"
)

// LocalDB answers lookups from a GeoLite2 City database on disk.
type LocalDB struct {
	reader *geoip2.Reader
}

// OpenLocal opens the database at path. It returns nil without error when
// path is empty or the file does not exist, because the database is optional.
func OpenLocal(path string, logger *slog.Logger) (*LocalDB, error) {
	if path == "" {
		logger.Debug("GeoIP database path not configured, using remote lookups only")
		return nil, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("GeoLite2 database not found, using remote lookups only",
			slog.String("path", path),
			slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		return nil, nil
	}

	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoLite2 database: %w", err)
	}

	logger.Info("GeoLite2 database initialized", slog.String("path", path))
	return &LocalDB{reader: reader}, nil
}

func (l *LocalDB) Lookup(_ context.Context, ip string) (Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}, ErrUnavailable
	}

	record, err := l.reader.City(parsed)
	if err != nil {
		return Location{}, fmt.Errorf("geolite2 lookup: %w", err)
	}
	if record.Country.IsoCode == "" {
		return Location{}, ErrUnavailable
	}

	country := record.Country.Names["en"]
	if country == "" {
		country = CountryName(record.Country.IsoCode)
	}
	return Location{
		Country:     country,
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
	}, nil
}

func (l *LocalDB) Close() error {
	return l.reader.Close()
}
