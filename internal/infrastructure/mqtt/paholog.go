package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// libraryLogger adapts slog to paho's package-level Logger interface.
type libraryLogger struct {
	logger *slog.Logger
	level  slog.Level
}

func (l libraryLogger) Println(v ...interface{}) {
	l.logger.Log(context.Background(), l.level, strings.TrimSpace(fmt.Sprintln(v...)), "source", "paho")
}

func (l libraryLogger) Printf(format string, v ...interface{}) {
	l.logger.Log(context.Background(), l.level, strings.TrimSpace(fmt.Sprintf(format, v...)), "source", "paho")
}

// RouteLibraryLogs sends paho's internal warnings and errors to logger.
//
// Reconnect attempts and CONNACK refusals after a dropped connection are
// only visible through these logs. The paho loggers are process-global;
// call once at startup.
func RouteLibraryLogs(logger *slog.Logger) {
	pahomqtt.ERROR = libraryLogger{logger: logger, level: slog.LevelError}
	pahomqtt.CRITICAL = libraryLogger{logger: logger, level: slog.LevelError}
	pahomqtt.WARN = libraryLogger{logger: logger, level: slog.LevelWarn}
}
