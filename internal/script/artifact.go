package script

import (
	"fmt"
	"os"
	"path/filepath"
)

// Artifact is the on-disk pair produced for one invocation. Both files are left
// in place afterwards for diagnosis.
type Artifact struct {
	ScriptPath string
	LogPath    string
}

// Prepare removes any log left by a previous run and writes the rendered script.
// A stale log must not be read as this run's result.
func Prepare(plan Plan) (Artifact, error) {
	if err := os.MkdirAll(filepath.Dir(plan.ScriptPath), 0700); err != nil {
		return Artifact{}, fmt.Errorf("failed to create script directory: %w", err)
	}
	if err := os.Remove(plan.LogPath); err != nil && !os.IsNotExist(err) {
		return Artifact{}, fmt.Errorf("failed to remove previous log: %w", err)
	}
	if err := os.WriteFile(plan.ScriptPath, []byte(RenderBatch(plan)), 0600); err != nil {
		return Artifact{}, fmt.Errorf("failed to write script: %w", err)
	}
	return Artifact{ScriptPath: plan.ScriptPath, LogPath: plan.LogPath}, nil
}

// BinaryNotFoundError reports that none of the candidate executables exist.
type BinaryNotFoundError struct {
	Dir        string
	Candidates []string
}

func (e *BinaryNotFoundError) Error() string {
	return "Service executable not found in: " + e.Dir
}

// LocateBinary returns the first candidate that exists as a regular file under
// <resourceDir>/<binariesDir>.
func LocateBinary(resourceDir, binariesDir string, candidates []string) (string, error) {
	dir := filepath.Join(resourceDir, binariesDir)
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", &BinaryNotFoundError{Dir: dir, Candidates: candidates}
}
