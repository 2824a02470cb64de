package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
	"github.com/wricardo/mcp-training/crossroadbus/game/service"
)

const sessionFileExt = ".json"

// FilePersistence stores each session as <id>.json in one directory.
type FilePersistence struct {
	sessionsDir   string
	configManager service.ConfigManager
	engineOpts    []engine.EngineOption
}

// NewFilePersistence creates the sessions directory if needed. engineOpts
// are applied to the engines of loaded sessions.
func NewFilePersistence(sessionsDir string, configManager service.ConfigManager, engineOpts ...engine.EngineOption) (*FilePersistence, error) {
	if err := os.MkdirAll(sessionsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &FilePersistence{
		sessionsDir:   sessionsDir,
		configManager: configManager,
		engineOpts:    engineOpts,
	}, nil
}

// Save writes the session file. The file is replaced atomically so a crash
// mid-write leaves the previous version in place.
func (fp *FilePersistence) Save(session *service.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}

	data := PersistedSessionData{
		ID:             session.ID,
		ConfigName:     fp.configName(session),
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		Level:          session.Config,
		GameState:      session.Engine.GetState(),
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	tmp, err := os.CreateTemp(fp.sessionsDir, "."+session.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fp.path(session.ID)); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Load rebuilds a session from its file. The level stored with the session
// wins over the config directory, since the saved bus position only makes
// sense on the layout it was driven on.
func (fp *FilePersistence) Load(id string) (*service.Session, error) {
	raw, err := os.ReadFile(fp.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var data PersistedSessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}

	level := data.Level
	if level == nil {
		level, err = fp.configManager.LoadConfig(data.ConfigName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config '%s': %w", data.ConfigName, err)
		}
	}

	eng, err := engine.NewEngine(level, fp.engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create game engine: %w", err)
	}
	if data.GameState != nil {
		if err := eng.SetState(data.GameState); err != nil {
			return nil, fmt.Errorf("failed to restore game state: %w", err)
		}
	}

	return &service.Session{
		ID:             data.ID,
		ConfigID:       data.ConfigName,
		Engine:         eng,
		Config:         level,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}, nil
}

// Delete removes the session file.
func (fp *FilePersistence) Delete(id string) error {
	err := os.Remove(fp.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// ListAll returns the ids of every session file.
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, sessionFileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, sessionFileExt))
	}
	return ids, nil
}

// Exists reports whether the session has a file.
func (fp *FilePersistence) Exists(id string) bool {
	_, err := os.Stat(fp.path(id))
	return err == nil
}

func (fp *FilePersistence) path(id string) string {
	return filepath.Join(fp.sessionsDir, id+sessionFileExt)
}

// configName returns the config file name of the session's level, looking it
// up by display name for sessions created before ConfigID was recorded.
func (fp *FilePersistence) configName(session *service.Session) string {
	if session.ConfigID != "" || session.Config == nil {
		return session.ConfigID
	}
	if configs, err := fp.configManager.ListConfigs(); err == nil {
		for _, c := range configs {
			if c.Name == session.Config.Name {
				return c.ConfigID
			}
		}
	}
	return session.Config.Name
}
