package heartbeat

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// processAlive reports whether pid refers to a currently running process,
// probed with a zero signal (does not actually signal the process).
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}

func readDir(dir string) ([]Heartbeat, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Heartbeat
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var hb Heartbeat
		if err := json.Unmarshal(data, &hb); err != nil {
			continue
		}
		out = append(out, hb)
	}
	return out, nil
}

// FindStaleHeartbeats scans the project-local and user-global recovery
// directories, dedups by sessionID preferring the project-local copy, and
// returns the heartbeats whose pid is no longer a live process — these
// represent sessions that crashed instead of shutting down cleanly.
func FindStaleHeartbeats(projectRoot, home string) ([]Heartbeat, error) {
	byID := map[string]Heartbeat{}

	if home != "" {
		userHBs, err := readDir(UserDir(home))
		if err != nil {
			return nil, err
		}
		for _, hb := range userHBs {
			byID[hb.SessionID] = hb
		}
	}
	if projectRoot != "" {
		projectHBs, err := readDir(ProjectDir(projectRoot))
		if err != nil {
			return nil, err
		}
		for _, hb := range projectHBs {
			byID[hb.SessionID] = hb
		}
	}

	var stale []Heartbeat
	for _, hb := range byID {
		if !processAlive(hb.PID) {
			stale = append(stale, hb)
		}
	}
	return stale, nil
}
