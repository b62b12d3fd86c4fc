package jobs_test

import (
	"os"
	"path/filepath"

	"github.com/danielwarnersmith/trace/internal/session"
)

func writeMedia(d *session.Dir, name string) error {
	return os.WriteFile(filepath.Join(d.Path(), session.MediaDir, name), []byte("audio"), 0o644)
}
