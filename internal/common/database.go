package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrNotFound = xerrors.New("nothing has been saved yet")

const PermissionWrite = 0o600

// A single JSON value stored in a file. Every save replaces the whole value
// through a rename, so readers see either the old or the new value
type Database struct {
	path string
}

func NewDatabase(path string) Database {
	return Database{path: path}
}

func (db *Database) Path() string {
	return db.path
}

func (db *Database) Load(value any) error {

	data, err := os.ReadFile(db.path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("could not read %s: %w", db.path, err)
	}

	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("could not decode %s: %w", db.path, err)
	}
	return nil
}

func (db *Database) Save(value any) error {

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode value for %s: %w", db.path, err)
	}

	// The temporary file lives next to the target so the rename stays
	// inside one filesystem
	dir, base := filepath.Split(db.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temporary file for %s: %w", db.path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("could not sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, PermissionWrite); err != nil {
		return fmt.Errorf("could not set permissions on %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, db.path); err != nil {
		return fmt.Errorf("could not replace %s: %w", db.path, err)
	}

	log.Debug().Str("path", db.path).Int("bytes", len(data)).Msg("Saved database")
	return nil
}
