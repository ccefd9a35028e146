package state

import (
	"github.com/canisterai/gptbot/internal/fsstore"
)

// Snapshot is the durable form of the admin-mutable state. Session
// turns are deliberately not part of it.
type Snapshot struct {
	Config    Config            `json:"config"`
	Usernames []string          `json:"usernames"`
	Shortcuts map[string]string `json:"shortcuts"`
}

// LoadSnapshot reads the snapshot file. A missing file is not an error;
// the second return value reports whether a snapshot was found.
func LoadSnapshot(path string) (Snapshot, bool, error) {
	var snap Snapshot
	ok, err := fsstore.ReadJSON(path, &snap)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, ok, nil
}

// SaveSnapshot writes the current admin state atomically. Called after
// every admin mutation so restarts keep /config changes.
func SaveSnapshot(path string, cfg *ConfigStore, allow *AllowList, shortcuts *ShortcutStore) error {
	snap := Snapshot{
		Config:    cfg.Get(),
		Usernames: allow.Names(),
		Shortcuts: shortcuts.Entries(),
	}
	return fsstore.WriteJSONAtomic(path, snap, fsstore.FileOptions{})
}
