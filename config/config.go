// Package config loads pxcat settings from TOML or YAML files.
//
// Missing keys keep their defaults, unknown keys are rejected and the
// result is validated before use:
//
//	cfg, err := config.Load("pxcat.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// A TOML file looks like:
//
//	charset = "cp1252"
//	locale = "de-DE"
//	max_rows = 1000
//	lob_cache_size = 16777216
//	watch = true
//
//	[log]
//	level = "debug"
//	format = "json"
//
//	[output]
//	format = "parquet"
//	compression = "zstd"
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/vegasq/pxcat/logging"
	"github.com/vegasq/pxcat/reader"
)

// DefaultLOBCacheSize is the LOB cache capacity used when none is configured
const DefaultLOBCacheSize = 8 * 1024 * 1024

// Output selects the result format
type Output struct {
	Format string `toml:"format" yaml:"format" validate:"omitempty,oneof=jsonl json csv table parquet"`
	// Compression applies to parquet output only
	Compression string `toml:"compression" yaml:"compression" validate:"omitempty,oneof=none uncompressed snappy gzip zstd lz4"`
}

// Config holds every setting shared by the command line tool and the driver
type Config struct {
	// Charset overrides the code page declared by each table
	Charset string `toml:"charset" yaml:"charset" validate:"omitempty,charset"`
	// Locale drives UPPER and LOWER
	Locale string `toml:"locale" yaml:"locale" validate:"omitempty,bcp47_language_tag"`
	// MaxRows caps every statement; 0 means unlimited
	MaxRows int64 `toml:"max_rows" yaml:"max_rows" validate:"gte=0"`
	// LOBCacheSize is the capacity in bytes of the external LOB cache; 0 disables it
	LOBCacheSize int `toml:"lob_cache_size" yaml:"lob_cache_size" validate:"gte=0"`
	// Watch invalidates cached table schemas on file system events
	Watch bool `toml:"watch" yaml:"watch"`

	Log    logging.Options `toml:"log" yaml:"log"`
	Output Output          `toml:"output" yaml:"output"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		LOBCacheSize: DefaultLOBCacheSize,
		Log: logging.Options{
			Level:  "warn",
			Format: "text",
		},
		Output: Output{
			Format:      "jsonl",
			Compression: "snappy",
		},
	}
}

// Load reads the file at path; the extension selects the decoder
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := Decode(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	return cfg, nil
}

// Decode parses data as toml or yaml over the defaults and validates the result
func Decode(data []byte, format string) (*Config, error) {
	cfg := Default()
	switch strings.ToLower(format) {
	case "toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TOML: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown config key %q", undecoded[0].String())
		}
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// an empty document leaves the defaults untouched
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("charset", func(fl validator.FieldLevel) bool {
			_, err := reader.LookupCharset(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// Validate checks every field constraint
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LocaleTag parses the configured locale; an empty locale is language.Und
func (c *Config) LocaleTag() language.Tag {
	if c.Locale == "" {
		return language.Und
	}
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Und
	}
	return tag
}

// ReaderOptions returns table decoding options for this configuration
func (c *Config) ReaderOptions() *reader.Options {
	return &reader.Options{
		Charset:  c.Charset,
		LOBCache: reader.NewLOBCache(c.LOBCacheSize),
	}
}
