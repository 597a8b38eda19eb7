package siteconf

import (
	"embed"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"bento/internal/ports"
	"bento/pkg/logging"
)

//go:embed clean/*.xml
var cleanFiles embed.FS

type xmlConfiguration struct {
	Properties []struct {
		Name  string `xml:"name"`
		Value string `xml:"value"`
	} `xml:"property"`
}

// WriteArtifact renders a into dir, replacing any previous version. The file
// is written to a temporary name, synced and renamed so a reader never sees
// a partial artifact.
func WriteArtifact(a *Artifact, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	data, err := a.Render()
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, a.FileName()), data)
}

func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// ReadProperty returns the value of key from the artifact named artifact in
// dir. A missing or unreadable artifact, or a missing key, yields fallback.
func ReadProperty(dir, artifact, key, fallback string) string {
	path := filepath.Join(dir, FileName(artifact))
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Warn("SiteConf", "Could not read %s: %v", path, err)
		}
		return fallback
	}

	var conf xmlConfiguration
	if err := xml.Unmarshal(data, &conf); err != nil {
		logging.Warn("SiteConf", "Could not parse %s: %v", path, err)
		return fallback
	}
	for _, p := range conf.Properties {
		if p.Name == key {
			return p.Value
		}
	}
	return fallback
}

// Store locates artifacts in the Hadoop and HBase configuration directories.
type Store struct {
	HadoopDir string
	HBaseDir  string
}

// NewStore returns a store rooted at the given directories.
func NewStore(hadoopDir, hbaseDir string) *Store {
	return &Store{HadoopDir: hadoopDir, HBaseDir: hbaseDir}
}

// DirFor returns the directory an artifact lives in.
func (s *Store) DirFor(artifact string) string {
	if artifact == ports.ArtifactHBase {
		return s.HBaseDir
	}
	return s.HadoopDir
}

// ReadProperty implements ports.PropertySource.
func (s *Store) ReadProperty(artifact, key, fallback string) string {
	return ReadProperty(s.DirFor(artifact), artifact, key, fallback)
}

// Write persists every artifact into its directory.
func (s *Store) Write(artifacts []*Artifact) error {
	for _, a := range artifacts {
		dir := s.DirFor(a.Name)
		if err := WriteArtifact(a, dir); err != nil {
			return err
		}
		logging.Debug("SiteConf", "Wrote %s", filepath.Join(dir, a.FileName()))
	}
	return nil
}

// Exists reports whether the named bento-managed artifact has been written.
func (s *Store) Exists(artifact string) bool {
	return isFile(filepath.Join(s.DirFor(artifact), FileName(artifact)))
}

// AnyExists reports whether any bento-managed artifact is already present.
func (s *Store) AnyExists() bool {
	for _, name := range ArtifactNames() {
		if s.Exists(name) {
			return true
		}
	}
	return false
}

// WriteCleanFiles writes the operator-owned site files that include the
// bento artifacts. Existing files are only replaced when reset is true. It
// returns the paths it wrote.
func (s *Store) WriteCleanFiles(reset bool) ([]string, error) {
	var written []string
	for _, name := range ArtifactNames() {
		dir := s.DirFor(name)
		path := filepath.Join(dir, name+".xml")
		if !reset && isFile(path) {
			continue
		}
		data, err := cleanFiles.ReadFile("clean/" + name + ".xml")
		if err != nil {
			return written, fmt.Errorf("missing clean template for %s: %w", name, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return written, fmt.Errorf("failed to create config directory %s: %w", dir, err)
		}
		if err := writeFileAtomic(path, data); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
