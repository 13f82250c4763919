package cachedemo

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"

	"github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
)

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// redisLogger bridges go-redis internal logging onto slog.
type redisLogger struct {
	logger *slog.Logger
}

func (l redisLogger) Printf(ctx context.Context, format string, v ...interface{}) {
	l.logger.DebugContext(ctx, fmt.Sprintf(format, v...), slog.String("client", "redis"))
}

// configureClientLogging points the process-wide loggers of third-party
// clients at logger, or silences them when logger is nil.
func configureClientLogging(logger *slog.Logger) {
	if logger == nil {
		logger = DiscardLogger()
		_ = mysql.SetLogger(log.New(io.Discard, "", 0))
	} else {
		_ = mysql.SetLogger(slog.NewLogLogger(logger.Handler().WithAttrs([]slog.Attr{slog.String("client", "mysql")}), slog.LevelDebug))
	}
	redis.SetLogger(redisLogger{logger: logger})
}
