// Package logs sets up host-side logging. Output goes to a text handler on a terminal and to the systemd
// journal when it is available.
package logs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

// Level is shared by every logger created by New
var Level = new(slog.LevelVar)

// SetLevel parses debug, info, warn or error
func SetLevel(s string) error {
	return Level.UnmarshalText([]byte(s))
}

// New creates a logger writing text to w. Under a systemd service the text handler is dropped and only the
// journal is used
func New(w io.Writer) *slog.Logger {
	var handlers []slog.Handler

	var textHandler slog.Handler
	if !isSystemdService() {
		textHandler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: Level})
		handlers = append(handlers, textHandler)
	}

	journalHandler, err := slogjournal.NewHandler(&slogjournal.Options{
		ReplaceGroup: func(key string) string {
			return journalKey(key)
		},
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			a.Key = journalKey(a.Key)
			return a
		},
	})
	if err != nil {
		if textHandler != nil && textHandler.Enabled(context.Background(), slog.LevelDebug) {
			record := slog.NewRecord(time.Now(), slog.LevelDebug, "journal unavailable", 0)
			record.Add("error", err)
			_ = textHandler.Handle(context.Background(), record)
		}
	} else {
		handlers = append(handlers, journalHandler)
	}

	return slog.New(slogmulti.Fanout(handlers...))
}

// journalKey makes a key acceptable as a journal field name
func journalKey(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, strings.ToUpper(s))
}

func isSystemdService() bool {
	content, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return false
	}
	parts := strings.Split(strings.TrimSpace(string(content)), ":")
	if len(parts) < 3 {
		return false
	}
	return strings.HasSuffix(path.Dir(parts[2]), ".service")
}
