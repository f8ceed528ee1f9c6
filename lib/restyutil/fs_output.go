package restyutil

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
)

func contextWithMessageId(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, messageIdKey{}, id)
}

type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput wipes `dir` and recreates it, so each run's dump starts
// clean.
func NewFilesystemOutput(dir string) FilesystemOutput {
	os.RemoveAll(dir)
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		panic(err)
	}
	return FilesystemOutput{directory: dir}
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}
