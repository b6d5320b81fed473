package history

import (
	"context"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/picatz/miktos/internal/history/storage"
	pebbleStorage "github.com/picatz/miktos/internal/history/storage/pebble"
	"github.com/rs/zerolog/log"
)

// pebbleLogger routes pebble's own logging to zerolog.
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...interface{}) {
	log.Debug().Str("component", "pebble").Msgf(format, args...)
}

func (pebbleLogger) Fatalf(format string, args ...interface{}) {
	log.Fatal().Str("component", "pebble").Msgf(format, args...)
}

func (pebbleLogger) Eventf(ctx context.Context, format string, args ...interface{}) {}

func (pebbleLogger) IsTracingEnabled(ctx context.Context) bool {
	return false
}

// Open opens the pebble-backed history log in dirname. When temporary is
// true the log lives in memory and dirname is ignored.
func Open(dirname string, temporary bool) (*Log, error) {
	opts := &pebble.Options{
		LoggerAndTracer: pebbleLogger{},
	}
	if temporary {
		opts.FS = vfs.NewMem()
		dirname = ""
	}

	backend, err := pebbleStorage.NewBackend(dirname, opts, &storage.JSONCodec[string, Record]{})
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	return NewLog(backend), nil
}
