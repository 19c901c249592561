package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local writes snapshots to a directory tree on the local filesystem.
type Local struct {
	baseDir string
}

var _ Store = (*Local)(nil)

// NewLocal creates a filesystem store rooted at baseDir, creating the
// directory when it does not exist.
func NewLocal(baseDir string) (*Local, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("archive directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create archive dir %s: %w", baseDir, err)
	}
	return &Local{baseDir: baseDir}, nil
}

// Save writes data to baseDir/objectName. Object names resolving outside
// the base directory are rejected.
func (l *Local) Save(ctx context.Context, objectName string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	if strings.TrimSpace(objectName) == "" {
		return fmt.Errorf("object name is required")
	}

	full := filepath.Join(l.baseDir, objectName)
	base := filepath.Clean(l.baseDir)
	if !strings.HasPrefix(filepath.Clean(full), base+string(filepath.Separator)) {
		return fmt.Errorf("object name %q escapes archive dir", objectName)
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("create archive dir for %s: %w", full, err)
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return fmt.Errorf("write archive object %s: %w", full, err)
	}
	return nil
}
