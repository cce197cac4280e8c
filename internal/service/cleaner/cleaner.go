package cleaner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/voc0der/linux-proton-ge-updater/internal/domain/release"
	"github.com/voc0der/linux-proton-ge-updater/internal/logger"
)

// Clean deletes every immediate child directory of dir whose name starts
// with prefix and returns the removed paths. Files and other names are kept.
// A missing dir is treated as empty. The first failed removal stops the
// run; entries removed before it stay removed.
func Clean(ctx context.Context, dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: list %s: %w", release.ErrFilesystem, dir, err)
	}

	var removed []string

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		oldPath := filepath.Join(dir, entry.Name())
		logger.InfoKV(ctx, "Removing old version", "path", oldPath)

		if err = os.RemoveAll(oldPath); err != nil {
			return removed, fmt.Errorf("%w: remove %s: %w", release.ErrFilesystem, oldPath, err)
		}

		removed = append(removed, oldPath)
	}

	return removed, nil
}
