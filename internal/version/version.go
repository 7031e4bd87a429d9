// Package version хранит сведения о сборке, которые задаются через -ldflags.
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Build — сведения о собранном бинарнике.
type Build struct {
	Version string
	Commit  string
	Date    string
}

// Current возвращает сведения о текущей сборке.
func Current() Build {
	return Build{Version: version, Commit: commit, Date: date}
}

// GetVersion возвращает только номер версии.
func GetVersion() string { return version }

func (b Build) String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", b.Version, b.Commit, b.Date)
}
