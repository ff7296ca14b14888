package daemon

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds every filesystem location the daemon cares about, resolved
// the XDG-style way: an explicit override from Config wins, otherwise an
// XDG_* environment variable, otherwise a hardcoded fallback (under the
// user's home directory for data and logs, under os.TempDir() as
// procd-<uid> for the runtime dir).
type Paths struct {
	DataDir    string // <data_dir>
	RuntimeDir string // <runtime_dir>, holds the socket and PID file
	LogDir     string // <log_dir>, holds per-project/process log files
	SocketPath string // <runtime_dir>/procd.sock
	PIDPath    string // <runtime_dir>/procd.pid
	DaemonLog  string // <log_dir>/procd.log
}

// ResolvePaths computes Paths, applying any non-empty overrides first.
func ResolvePaths(dataDirOverride, runtimeDirOverride, logDirOverride string) (Paths, error) {
	dataDir, err := resolve(dataDirOverride, "XDG_DATA_HOME", ".local/share", "procd")
	if err != nil {
		return Paths{}, err
	}
	runtimeDir, err := resolveRuntimeDir(runtimeDirOverride)
	if err != nil {
		return Paths{}, err
	}
	logDir, err := resolve(logDirOverride, "XDG_STATE_HOME", ".local/state", "procd", "log")
	if err != nil {
		return Paths{}, err
	}

	return Paths{
		DataDir:    dataDir,
		RuntimeDir: runtimeDir,
		LogDir:     logDir,
		SocketPath: filepath.Join(runtimeDir, "procd.sock"),
		PIDPath:    filepath.Join(runtimeDir, "procd.pid"),
		DaemonLog:  filepath.Join(logDir, "procd.log"),
	}, nil
}

func resolve(override, xdgVar, homeFallback string, tail ...string) (string, error) {
	if override != "" {
		return override, nil
	}
	if v := os.Getenv(xdgVar); v != "" {
		return filepath.Join(append([]string{v}, tail...)...), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve xdg path: %w", err)
	}
	return filepath.Join(append([]string{home, homeFallback}, tail...)...), nil
}

func resolveRuntimeDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		return filepath.Join(v, "procd"), nil
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("procd-%d", os.Getuid())), nil
}

// EnsureDirs creates every directory these paths depend on, with
// permissions tight enough for a single-user control socket (0700 for the
// runtime dir, which also holds the socket itself at 0600).
func (p Paths) EnsureDirs() error {
	if err := os.MkdirAll(p.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(p.RuntimeDir, 0o700); err != nil {
		return fmt.Errorf("create runtime dir: %w", err)
	}
	if err := os.MkdirAll(p.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	return nil
}

// ProjectLogDir returns the directory a project's per-process log files
// live under, creating it lazily.
func (p Paths) ProjectLogDir(project string) (string, error) {
	dir := filepath.Join(p.LogDir, project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create project log dir: %w", err)
	}
	return dir, nil
}

// ProcessLogFile returns the log file path for (project, name), where name
// has already been sanitized (see process.SanitizeName).
func (p Paths) ProcessLogFile(project, sanitizedName string) string {
	return filepath.Join(p.LogDir, project, sanitizedName+".log")
}
