// Package heartbeat writes per-session liveness records to a project-local
// and a user-global directory, and scans both at startup for records left
// behind by sessions that crashed instead of shutting down cleanly.
package heartbeat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Heartbeat is one session's liveness record.
type Heartbeat struct {
	SessionID  string    `json:"sessionID"`
	ProjectDir string    `json:"projectDir"`
	TodoState  string    `json:"todoState"`
	Timestamp  time.Time `json:"timestamp"`
	PID        int       `json:"pid"`
}

// recoveryDirName is the fixed subdirectory both project-local and
// user-global heartbeats live under.
const recoveryDirName = ".opencode/recovery"

// ProjectDir returns the project-local recovery directory for projectRoot.
func ProjectDir(projectRoot string) string {
	return filepath.Join(projectRoot, recoveryDirName)
}

// UserDir returns the user-global recovery directory.
func UserDir(home string) string {
	return filepath.Join(home, recoveryDirName)
}

func heartbeatPath(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+".json")
}

// Writer owns a single session's heartbeat files, writing to both the
// project-local and user-global directories and removing both on clean
// shutdown.
type Writer struct {
	projectDir string
	userDir    string
	sessionID  string
}

// NewWriter builds a Writer for sessionID. projectRoot and home may be
// empty to skip that location (e.g. no $HOME in a sandboxed test).
func NewWriter(sessionID, projectRoot, home string) *Writer {
	w := &Writer{sessionID: sessionID}
	if projectRoot != "" {
		w.projectDir = ProjectDir(projectRoot)
	}
	if home != "" {
		w.userDir = UserDir(home)
	}
	return w
}

// Write stamps and writes the heartbeat to every configured directory.
func (w *Writer) Write(hb Heartbeat) error {
	hb.SessionID = w.sessionID
	hb.Timestamp = time.Now().UTC()
	hb.PID = os.Getpid()

	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("heartbeat: marshal: %w", err)
	}

	var firstErr error
	for _, dir := range []string{w.projectDir, w.userDir} {
		if dir == "" {
			continue
		}
		if err := writeAtomic(dir, w.sessionID, data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func writeAtomic(dir, sessionID string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("heartbeat: mkdir %s: %w", dir, err)
	}
	return os.WriteFile(heartbeatPath(dir, sessionID), data, 0o644)
}

// Delete removes the heartbeat from every configured directory, for a
// clean shutdown.
func (w *Writer) Delete() error {
	var firstErr error
	for _, dir := range []string{w.projectDir, w.userDir} {
		if dir == "" {
			continue
		}
		if err := os.Remove(heartbeatPath(dir, w.sessionID)); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
