package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/busly/routafare/core/logger"
)

// readJSONFile loads path into v. An absent or empty file is a valid empty
// store; any other failure is logged and v is left untouched so the caller
// starts from a clean in-memory state.
func readJSONFile(path string, v any) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn(context.Background(), "store", "read.failed",
				slog.String("file", path),
				slog.String("err", err.Error()),
			)
		}
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Warn(context.Background(), "store", "read.corrupt",
			slog.String("file", path),
			slog.String("err", err.Error()),
		)
	}
}

// writeJSONFile rewrites path with the full serialized state. Failures are
// logged and swallowed; the in-memory copy remains authoritative.
func writeJSONFile(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Error(context.Background(), "store", "write.encode_failed",
			slog.String("file", path),
			slog.String("err", err.Error()),
		)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Warn(context.Background(), "store", "write.failed",
			slog.String("file", path),
			slog.String("err", err.Error()),
		)
	}
}
