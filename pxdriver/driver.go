// Package pxdriver is a read-only database/sql driver for Paradox tables.
//
// Importing the package registers the driver as "paradox". The data source
// name is a directory, optionally followed by settings:
//
//	db, err := sql.Open("paradox", "/data/px?charset=cp1252&locale=de&maxrows=500")
//
// Accepted settings are charset, locale, maxrows, lobcache (bytes), watch
// and config, the path of a TOML or YAML file whose values the other
// settings override. Only queries are supported; Exec and Begin fail with
// the unsupported code.
package pxdriver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/vegasq/pxcat/config"
	"github.com/vegasq/pxcat/query"
	"github.com/vegasq/pxcat/reader"
)

// DriverName is the name the driver registers under
const DriverName = "paradox"

func init() {
	sql.Register(DriverName, &Driver{})
}

// Driver opens connectors over Paradox directories
type Driver struct{}

// Open parses dsn and returns a new connection
func (d *Driver) Open(dsn string) (driver.Conn, error) {
	c, err := d.OpenConnector(dsn)
	if err != nil {
		return nil, err
	}
	return c.Connect(context.Background())
}

// OpenConnector parses dsn and opens its catalog once for every connection of a sql.DB
func (d *Driver) OpenConnector(dsn string) (driver.Connector, error) {
	dir, cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return NewConnector(dir, cfg, nil)
}

// ParseDSN splits a data source name into its directory and configuration
func ParseDSN(dsn string) (string, *config.Config, error) {
	dir, rawQuery, _ := strings.Cut(dsn, "?")
	if dir == "" {
		return "", nil, fmt.Errorf("pxdriver: empty directory in dsn %q", dsn)
	}
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", nil, fmt.Errorf("pxdriver: invalid dsn parameters: %w", err)
	}

	cfg := config.Default()
	if path := params.Get("config"); path != "" {
		if cfg, err = config.Load(path); err != nil {
			return "", nil, err
		}
	}
	for key, values := range params {
		v := values[len(values)-1]
		switch strings.ToLower(key) {
		case "config":
		case "charset":
			cfg.Charset = v
		case "locale":
			cfg.Locale = v
		case "maxrows":
			if cfg.MaxRows, err = strconv.ParseInt(v, 10, 64); err != nil {
				return "", nil, fmt.Errorf("pxdriver: invalid maxrows %q", v)
			}
		case "lobcache":
			if cfg.LOBCacheSize, err = strconv.Atoi(v); err != nil {
				return "", nil, fmt.Errorf("pxdriver: invalid lobcache %q", v)
			}
		case "watch":
			if cfg.Watch, err = strconv.ParseBool(v); err != nil {
				return "", nil, fmt.Errorf("pxdriver: invalid watch %q", v)
			}
		default:
			return "", nil, fmt.Errorf("pxdriver: unknown dsn parameter %q", key)
		}
	}
	if err := cfg.Validate(); err != nil {
		return "", nil, err
	}
	return dir, cfg, nil
}

// Connector shares one catalog and session between the connections of a sql.DB
type Connector struct {
	session *query.Session
	watcher *reader.Watcher
}

// NewConnector opens the catalog rooted at dir. opts supplies the logger,
// metrics and tracer; its locale and row cap are taken from cfg.
// Use it with sql.OpenDB.
func NewConnector(dir string, cfg *config.Config, opts *query.SessionOptions) (*Connector, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	sessionOpts := query.SessionOptions{}
	if opts != nil {
		sessionOpts = *opts
	}
	sessionOpts.Locale = cfg.LocaleTag()
	sessionOpts.MaxRows = cfg.MaxRows

	readerOpts := cfg.ReaderOptions()
	readerOpts.Logger = sessionOpts.Logger
	readerOpts.Metrics = sessionOpts.Metrics

	catalog, err := reader.OpenCatalog(dir, readerOpts)
	if err != nil {
		return nil, err
	}
	c := &Connector{session: query.NewSession(catalog, &sessionOpts)}
	if cfg.Watch {
		if c.watcher, err = reader.WatchCatalog(catalog); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Connect returns a connection over the shared session
func (c *Connector) Connect(context.Context) (driver.Conn, error) {
	return &conn{session: c.session}, nil
}

// Driver returns the paradox driver
func (c *Connector) Driver() driver.Driver {
	return &Driver{}
}

// Session exposes the session used by every connection
func (c *Connector) Session() *query.Session {
	return c.session
}

// Close stops the file watcher, if any; sql.DB.Close calls it
func (c *Connector) Close() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}
