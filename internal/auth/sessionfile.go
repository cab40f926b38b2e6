package auth

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/chatdesk-go/internal/models"
)

// SessionFile persists the signed-in identity between process runs.
// Only the profile id and email are stored, never credentials.
type SessionFile struct {
	path string
}

type sessionRecord struct {
	UserID string `yaml:"user_id"`
	Email  string `yaml:"email"`
}

// NewSessionFile uses path, or the default location under the user
// config dir when path is empty.
func NewSessionFile(path string) (*SessionFile, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		path = filepath.Join(dir, "chatdesk", "session.yaml")
	}
	return &SessionFile{path: path}, nil
}

// Save writes the profile's identity to disk.
func (s *SessionFile) Save(profile *models.Profile) error {
	record := sessionRecord{
		UserID: models.MustRecordIDString(profile.ID),
		Email:  profile.Email,
	}

	data, err := yaml.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Load returns the stored identity, or ErrNotSignedIn when no session
// exists.
func (s *SessionFile) Load() (userID, email string, err error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", ErrNotSignedIn
		}
		return "", "", fmt.Errorf("read session: %w", err)
	}

	var record sessionRecord
	if err := yaml.Unmarshal(data, &record); err != nil {
		return "", "", fmt.Errorf("parse session: %w", err)
	}
	if record.UserID == "" {
		return "", "", ErrNotSignedIn
	}
	return record.UserID, record.Email, nil
}

// Clear removes the stored session. Safe to call when none exists.
func (s *SessionFile) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
