package services

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BackupService snapshots the dashboard data directory (database file
// and credential cache) into tar.gz archives. Archives never leave the
// backups directory; restore always targets the data directory the
// snapshot came from.
type BackupService struct {
	dataPath    string
	backupsPath string
}

type BackupFile struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

func NewBackupService(dataPath, backupsPath string) *BackupService {
	return &BackupService{
		dataPath:    dataPath,
		backupsPath: backupsPath,
	}
}

// CreateSnapshot archives the data directory. The backups directory is
// excluded so snapshots never nest.
func (s *BackupService) CreateSnapshot(name string) (*BackupFile, error) {
	if name == "" {
		name = fmt.Sprintf("snapshot_%d.tar.gz", time.Now().Unix())
	}
	if !strings.HasSuffix(name, ".tar.gz") {
		name += ".tar.gz"
	}
	if err := validBackupName(name); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.backupsPath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create backups directory: %w", err)
	}

	outputPath := filepath.Join(s.backupsPath, name)
	file, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup file: %w", err)
	}
	defer file.Close()

	gzWriter := gzip.NewWriter(file)
	defer gzWriter.Close()

	tarWriter := tar.NewWriter(gzWriter)
	defer tarWriter.Close()

	absBackups, _ := filepath.Abs(s.backupsPath)

	err = filepath.Walk(s.dataPath, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if abs, err := filepath.Abs(filePath); err == nil && strings.HasPrefix(abs, absBackups) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		srcFile, err := os.Open(filePath)
		if err != nil {
			return err
		}
		defer srcFile.Close()

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(s.dataPath, filePath)
		if err != nil {
			return err
		}
		header.Name = relPath

		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}
		_, err = io.Copy(tarWriter, srcFile)
		return err
	})
	if err != nil {
		os.Remove(outputPath)
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, err
	}
	return &BackupFile{Name: name, Size: info.Size(), CreatedAt: info.ModTime()}, nil
}

// ListSnapshots returns the available archives.
func (s *BackupService) ListSnapshots() ([]BackupFile, error) {
	entries, err := os.ReadDir(s.backupsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []BackupFile{}, nil
		}
		return nil, err
	}

	var backups []BackupFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tar.gz") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupFile{
			Name:      entry.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	return backups, nil
}

// DeleteSnapshot removes one archive.
func (s *BackupService) DeleteSnapshot(name string) error {
	if err := validBackupName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.backupsPath, name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: snapshot %q", ErrNotFound, name)
		}
		return err
	}
	return nil
}

// RestoreSnapshot extracts an archive back into the data directory.
// The server must be restarted afterwards to reopen the database.
func (s *BackupService) RestoreSnapshot(name string) error {
	if err := validBackupName(name); err != nil {
		return err
	}

	file, err := os.Open(filepath.Join(s.backupsPath, name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: snapshot %q", ErrNotFound, name)
		}
		return err
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to read gzip: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar: %w", err)
		}

		// Reject entries that would escape the data directory.
		if strings.Contains(header.Name, "..") {
			return fmt.Errorf("%w: snapshot entry %q", ErrValidation, header.Name)
		}

		targetPath := filepath.Join(s.dataPath, header.Name)
		if header.Typeflag == tar.TypeDir {
			os.MkdirAll(targetPath, os.FileMode(header.Mode))
			continue
		}

		if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
			return err
		}
		targetFile, err := os.Create(targetPath)
		if err != nil {
			return fmt.Errorf("failed to create file: %w", err)
		}
		if _, err := io.Copy(targetFile, tarReader); err != nil {
			targetFile.Close()
			return fmt.Errorf("failed to extract file: %w", err)
		}
		targetFile.Close()
		os.Chmod(targetPath, os.FileMode(header.Mode))
	}

	return nil
}

// CleanOldSnapshots removes archives older than retention days.
func (s *BackupService) CleanOldSnapshots(retentionDays int) error {
	backups, err := s.ListSnapshots()
	if err != nil {
		return err
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, backup := range backups {
		if backup.CreatedAt.Before(cutoff) {
			if err := s.DeleteSnapshot(backup.Name); err != nil {
				continue
			}
		}
	}
	return nil
}

func validBackupName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("%w: invalid snapshot name %q", ErrValidation, name)
	}
	return nil
}
