package bot

import (
	"errors"
	"fmt"
	"time"

	"dominionbot/internal/common"
	"dominionbot/internal/roles"

	"golang.org/x/xerrors"
)

var ErrSnapshotNotFound = xerrors.New("requested roles have never been fetched")

// What was requested in the sheet at the time of the last fetch
type Snapshot struct {
	FetchedAt      time.Time            `json:"fetched_at"`
	RequestedRoles roles.RequestedRoles `json:"requested_roles"`
}

// Single-slot store for the last snapshot
type DatabaseBot struct {
	common.Database
}

func NewDatabaseBot(path string) DatabaseBot {
	return DatabaseBot{common.NewDatabase(path)}
}

func (db *DatabaseBot) SetRequestedRoles(requested roles.RequestedRoles, fetchedAt time.Time) error {
	if requested == nil {
		requested = roles.RequestedRoles{}
	}
	if err := db.Save(Snapshot{FetchedAt: fetchedAt.UTC(), RequestedRoles: requested}); err != nil {
		return fmt.Errorf("could not save requested roles: %w", err)
	}
	return nil
}

func (db *DatabaseBot) GetRequestedRoles() (Snapshot, error) {
	var snapshot Snapshot
	if err := db.Load(&snapshot); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return Snapshot{}, ErrSnapshotNotFound
		}
		return Snapshot{}, fmt.Errorf("could not load requested roles: %w", err)
	}
	if snapshot.RequestedRoles == nil {
		snapshot.RequestedRoles = roles.RequestedRoles{}
	}
	return snapshot, nil
}
