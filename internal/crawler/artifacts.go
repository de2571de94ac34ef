package crawler

import (
	"os"
	"path/filepath"

	"sjsage522/outletscraper/logger"
)

// Artifacts receives debug output of a run. Saving is fire-and-forget:
// implementations swallow their own failures.
type Artifacts interface {
	SaveText(name, content string)
	SaveScreenshot(name string, png []byte)
}

// NopArtifacts discards everything
type NopArtifacts struct{}

func (NopArtifacts) SaveText(string, string)       {}
func (NopArtifacts) SaveScreenshot(string, []byte) {}

// DirArtifacts writes artifacts as files under Dir
type DirArtifacts struct {
	Dir    string
	Logger *logger.Logger
}

// NewDirArtifacts creates a directory-backed artifact store
func NewDirArtifacts(dir string, log *logger.Logger) *DirArtifacts {
	if log == nil {
		log = logger.Nop()
	}
	return &DirArtifacts{Dir: dir, Logger: log}
}

func (a *DirArtifacts) SaveText(name, content string) {
	a.write(name, []byte(content))
}

func (a *DirArtifacts) SaveScreenshot(name string, png []byte) {
	a.write(name, png)
}

func (a *DirArtifacts) write(name string, data []byte) {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		a.Logger.Debug().Err(err).Str("dir", a.Dir).Msg("Failed to create debug directory")
		return
	}
	path := filepath.Join(a.Dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		a.Logger.Debug().Err(err).Str("path", path).Msg("Failed to save debug artifact")
		return
	}
	a.Logger.Debug().Str("path", path).Msg("Saved debug artifact")
}
