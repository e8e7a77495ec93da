package sheetxml

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

const (
	BackupSuffix    = ".backup"
	timestampLayout = "20060102_150405"
	outputPrefix    = "modified_"
)

var (
	ErrOverwriteOriginal = errors.New("refusing to overwrite the original workbook")
	ErrWriteFailed       = errors.New("write failed")
)

// DefaultOutputPath names a timestamped output next to the original file.
func (d *Document) DefaultOutputPath() string {
	base := "document"
	dir := "."
	if d.path != "" {
		base = strings.TrimSuffix(filepath.Base(d.path), filepath.Ext(d.path))
		dir = filepath.Dir(d.path)
	}
	return filepath.Join(dir, fmt.Sprintf("%s%s_%s.xml", outputPrefix, base, d.now().Format(timestampLayout)))
}

// OutputPathFor names a timestamped output for a derived form.
func (d *Document) OutputPathFor(formName string) string {
	dir := "."
	if d.path != "" {
		dir = filepath.Dir(d.path)
	}
	name := strings.ReplaceAll(strings.TrimSpace(formName), " ", "_")
	return filepath.Join(dir, fmt.Sprintf("%s%s_%s.xml", outputPrefix, name, d.now().Format(timestampLayout)))
}

// Save writes the workbook to outputPath, or to DefaultOutputPath when it
// is empty. The original file is backed up once and never overwritten.
// An existing output file is left alone and a numbered name is used.
// Backup and write errors wrap ErrWriteFailed.
func (d *Document) Save(outputPath string) (string, error) {
	data, err := d.Bytes()
	if err != nil {
		return "", err
	}
	return d.write(outputPath, data)
}

// SaveFrom writes work under this document's naming and backup rules and
// then adopts its tree. On failure this document is left untouched.
func (d *Document) SaveFrom(work *Document, outputPath string) (string, error) {
	data, err := work.Bytes()
	if err != nil {
		return "", err
	}
	dest, err := d.write(outputPath, data)
	if err != nil {
		return "", err
	}
	d.ReplaceRoot(work.CopyRoot())
	return dest, nil
}

func (d *Document) write(outputPath string, data []byte) (string, error) {
	if outputPath == "" {
		outputPath = d.DefaultOutputPath()
	}
	if d.path != "" && samePath(outputPath, d.path) {
		return "", ErrOverwriteOriginal
	}
	dest, err := uniquePath(outputPath)
	if err != nil {
		return "", err
	}
	if d.path != "" {
		if err := d.ensureBackup(); err != nil {
			return "", fmt.Errorf("%w: backup: %w", ErrWriteFailed, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := atomicWrite(dest, data); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	d.logger.Info("sheetxml.saved", "path", dest, "bytes", len(data))
	return dest, nil
}

// BackupPath is where the one-time copy of the original is kept.
func (d *Document) BackupPath() string {
	if d.path == "" {
		return ""
	}
	return d.path + BackupSuffix
}

func (d *Document) ensureBackup() error {
	lock := flock.New(lockPath(d.path))
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()
	backup := d.BackupPath()
	if _, err := os.Stat(backup); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := copyFile(d.path, backup); err != nil {
		return err
	}
	d.logger.Info("sheetxml.backup_created", "path", backup)
	return nil
}

func lockPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(os.TempDir(), "formedit-"+hex.EncodeToString(sum[:8])+".lock")
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func uniquePath(path string) (string, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	candidate := path
	for i := 0; ; i++ {
		if i > 0 {
			candidate = fmt.Sprintf("%s(%d)%s", stem, i, ext)
		}
		if _, err := os.Stat(candidate); err == nil {
			continue
		} else if os.IsNotExist(err) {
			return candidate, nil
		} else {
			return "", err
		}
	}
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	return os.Chtimes(dest, info.ModTime(), info.ModTime())
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".formedit-*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer os.Remove(name)
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		return err
	}
	return os.Rename(name, path)
}
