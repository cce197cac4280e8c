package installer

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/voc0der/linux-proton-ge-updater/internal/config"
	"github.com/voc0der/linux-proton-ge-updater/internal/domain/release"
)

// directoryMode is applied to directories implied by file entries.
const directoryMode = 0o755

var (
	errUnknownExtractor = errors.New("unknown extractor")
	errUnsupportedType  = errors.New("unsupported archive type")
	errUnsafePath       = errors.New("archive entry escapes destination")
)

// Extractor unpacks archivePath into destDir.
type Extractor interface {
	Extract(ctx context.Context, archivePath, destDir string) error
}

// NewExtractor returns the extractor named in the configuration.
//
//nolint:ireturn // The extractor is a runtime choice.
func NewExtractor(cfg *config.Config) (Extractor, error) {
	switch cfg.Extractor {
	case config.ExtractorTar, "":
		return &CommandExtractor{Command: cfg.TarCommand}, nil
	case config.ExtractorBuiltin:
		return new(BuiltinExtractor), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownExtractor, cfg.Extractor)
	}
}

// CommandExtractor runs `<Command> -xf <archive> -C <dest>`.
type CommandExtractor struct {
	// Command is the tar-compatible executable.
	Command string
}

// Extract runs the command; a non-zero exit is fatal.
func (e *CommandExtractor) Extract(ctx context.Context, archivePath, destDir string) error {
	var stderr bytes.Buffer

	//nolint:gosec // The command comes from the user's own configuration.
	cmd := exec.CommandContext(ctx, e.Command, "-xf", archivePath, "-C", destDir)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := strings.TrimSpace(stderr.String())
		if message != "" {
			return fmt.Errorf("%w: %s %s: %w: %s", release.ErrFilesystem, e.Command, archivePath, err, message)
		}

		return fmt.Errorf("%w: %s %s: %w", release.ErrFilesystem, e.Command, archivePath, err)
	}

	return nil
}

// BuiltinExtractor unpacks .tar, .tar.gz/.tgz and .tar.xz in process.
type BuiltinExtractor struct{}

// Extract picks the decompressor by file extension and writes the entries.
// Every write goes through an *os.Root, so links created by earlier entries
// cannot redirect later ones outside destDir.
func (e *BuiltinExtractor) Extract(ctx context.Context, archivePath, destDir string) error {
	file, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return fmt.Errorf("%w: open archive: %w", release.ErrFilesystem, err)
	}

	defer func() {
		_ = file.Close()
	}()

	stream, err := decompressor(archivePath, file)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", release.ErrFilesystem, filepath.Base(archivePath), err)
	}

	root, err := os.OpenRoot(destDir)
	if err != nil {
		return fmt.Errorf("%w: open destination: %w", release.ErrFilesystem, err)
	}

	defer func() {
		_ = root.Close()
	}()

	if err = untar(ctx, tar.NewReader(stream), root); err != nil {
		return fmt.Errorf("%w: extract %s: %w", release.ErrFilesystem, filepath.Base(archivePath), err)
	}

	return nil
}

// decompressor wraps src according to the archive extension.
func decompressor(name string, src io.Reader) (io.Reader, error) {
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return gzip.NewReader(src)
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		return xz.NewReader(src)
	case strings.HasSuffix(name, ".tar"):
		return src, nil
	default:
		return nil, errUnsupportedType
	}
}

// untar writes directories, regular files and links below root.
func untar(ctx context.Context, reader *tar.Reader, root *os.Root) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		name, err := localName(header.Name)
		if err != nil {
			return err
		}

		if err = checkParents(root, name); err != nil {
			return err
		}

		if err = writeEntry(reader, header, root, name); err != nil {
			return err
		}
	}
}

func writeEntry(reader io.Reader, header *tar.Header, root *os.Root, name string) error {
	switch header.Typeflag {
	case tar.TypeDir:
		return root.MkdirAll(name, header.FileInfo().Mode().Perm()|0o700)
	case tar.TypeReg:
		return writeFile(reader, root, name, header.FileInfo().Mode().Perm())
	case tar.TypeSymlink:
		if filepath.IsAbs(header.Linkname) {
			return fmt.Errorf("%w: %s -> %s", errUnsafePath, header.Name, header.Linkname)
		}

		if _, err := localName(filepath.Join(filepath.Dir(name), header.Linkname)); err != nil {
			return err
		}

		if err := root.MkdirAll(filepath.Dir(name), directoryMode); err != nil {
			return err
		}

		return root.Symlink(header.Linkname, name)
	case tar.TypeLink:
		source, err := localName(header.Linkname)
		if err != nil {
			return err
		}

		if err = root.MkdirAll(filepath.Dir(name), directoryMode); err != nil {
			return err
		}

		return root.Link(source, name)
	default:
		// Devices, fifos and pax metadata have no place in a tool directory.
		return nil
	}
}

func writeFile(reader io.Reader, root *os.Root, name string, mode os.FileMode) error {
	if err := root.MkdirAll(filepath.Dir(name), directoryMode); err != nil {
		return err
	}

	out, err := root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	//nolint:gosec // Archive size is bounded by the upstream release.
	if _, err = io.Copy(out, reader); err != nil {
		_ = out.Close()

		return err
	}

	return out.Close()
}

// localName cleans an archive path and rejects absolute or parent-relative results.
func localName(name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if !filepath.IsLocal(cleaned) {
		return "", fmt.Errorf("%w: %s", errUnsafePath, name)
	}

	return cleaned, nil
}

// checkParents refuses entries whose existing parent directories include a symlink.
func checkParents(root *os.Root, name string) error {
	current := ""

	for _, part := range strings.Split(filepath.Dir(name), string(filepath.Separator)) {
		if part == "." {
			continue
		}

		current = filepath.Join(current, part)

		info, err := root.Lstat(current)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		if err != nil {
			return err
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s is written through link %s", errUnsafePath, name, current)
		}
	}

	return nil
}
