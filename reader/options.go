package reader

import (
	"log/slog"

	"github.com/vegasq/pxcat/logging"
	"github.com/vegasq/pxcat/metrics"
)

// Options configures table decoding and schema caching
type Options struct {
	// Charset overrides the code page declared by each table when set
	Charset string
	// Lister enumerates schema directories; defaults to DirLister
	Lister Lister
	// LOBCache caches external large object payloads; nil disables caching
	LOBCache *LOBCache
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

func (o *Options) withDefaults() *Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.Lister == nil {
		out.Lister = DirLister{}
	}
	out.Logger = logging.OrDiscard(out.Logger)
	return &out
}
