package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// DefaultAppName names the config and data directories when no override is given.
const DefaultAppName = "connboard"

// templateExt is the extension of status-icon override files under TemplateDir.
const templateExt = ".tmpl"

// Paths holds the per-user locations connboard reads and writes.
type Paths struct {
	AppName    string
	ConfigPath string
	// TemplateDir holds optional <name>.tmpl overrides for the status-icon templates.
	TemplateDir string
	DataDir     string
	DBPath      string
	LogDir      string
}

// Options selects the app directory name.
type Options struct {
	AppName string
	DevMode bool
}

func (o Options) dirName() string {
	name := strings.TrimSpace(o.AppName)
	if name == "" {
		name = DefaultAppName
	}
	if o.DevMode {
		name += "-dev"
	}
	return name
}

// Env is the part of the process environment that moves per-user directories.
type Env struct {
	GOOS          string
	Home          string
	UserConfigDir string
	XDGConfigHome string
	XDGDataHome   string
	AppData       string
	LocalAppData  string
}

// CurrentEnv reads Env from the running process.
func CurrentEnv() (Env, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return Env{}, fmt.Errorf("user config dir: %w", err)
	}
	env := Env{
		GOOS:          runtime.GOOS,
		UserConfigDir: configDir,
		XDGConfigHome: os.Getenv("XDG_CONFIG_HOME"),
		XDGDataHome:   os.Getenv("XDG_DATA_HOME"),
		AppData:       os.Getenv("APPDATA"),
		LocalAppData:  os.Getenv("LOCALAPPDATA"),
	}
	if env.GOOS == "linux" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Env{}, fmt.Errorf("user home dir: %w", err)
		}
		env.Home = home
	}
	return env, nil
}

// Default resolves paths for the running process.
func Default(opts Options) (Paths, error) {
	env, err := CurrentEnv()
	if err != nil {
		return Paths{}, err
	}
	return Resolve(env, opts)
}

// Resolve lays out connboard's directories for one environment snapshot.
func Resolve(env Env, opts Options) (Paths, error) {
	configBase, dataBase := env.bases()
	if configBase == "" || dataBase == "" {
		return Paths{}, errors.New("empty base dirs")
	}
	name := opts.dirName()
	configDir := filepath.Join(configBase, name)
	dataDir := filepath.Join(dataBase, name)
	return Paths{
		AppName:     name,
		ConfigPath:  filepath.Join(configDir, "config.toml"),
		TemplateDir: filepath.Join(configDir, "templates"),
		DataDir:     dataDir,
		DBPath:      filepath.Join(dataDir, name+".db"),
		LogDir:      filepath.Join(dataDir, "log"),
	}, nil
}

// bases picks the config and data roots. Linux follows XDG, Windows splits roaming
// config from local data, and everything else keeps both under the user config dir.
func (e Env) bases() (string, string) {
	configBase, dataBase := e.UserConfigDir, e.UserConfigDir
	switch e.GOOS {
	case "linux":
		if e.Home != "" {
			dataBase = filepath.Join(e.Home, ".local", "share")
		}
		configBase = firstNonBlank(e.XDGConfigHome, configBase)
		dataBase = firstNonBlank(e.XDGDataHome, dataBase)
	case "windows":
		configBase = firstNonBlank(e.AppData, configBase)
		dataBase = firstNonBlank(e.LocalAppData, dataBase)
	}
	return configBase, dataBase
}

// TemplateFile returns the override path for one named template.
func (p Paths) TemplateFile(name string) string {
	return filepath.Join(p.TemplateDir, name+templateExt)
}

// ReadTemplate returns the override source for name. A missing file is not an error;
// ok reports whether one was found.
func (p Paths) ReadTemplate(name string) (src string, ok bool, err error) {
	if strings.TrimSpace(p.TemplateDir) == "" {
		return "", false, nil
	}
	raw, err := os.ReadFile(p.TemplateFile(name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s template: %w", name, err)
	}
	return string(raw), true, nil
}

// DevLogFile names the dev log for the given day. An absolute dir is used as is; a
// relative one is anchored at the workspace enclosing cwd, and without a workspace
// the log goes to LogDir.
func (p Paths) DevLogFile(dir, cwd string, day time.Time) string {
	dir = strings.TrimSpace(dir)
	switch {
	case filepath.IsAbs(dir):
	case dir != "":
		if root, ok := WorkspaceRoot(cwd); ok {
			dir = filepath.Join(root, dir)
		} else {
			dir = p.LogDir
		}
	default:
		dir = p.LogDir
	}
	name := fmt.Sprintf("%s-%s.log", logFileStem(p.AppName), day.Format("20060102"))
	return filepath.Join(filepath.Clean(dir), name)
}

// WorkspaceRoot walks up from start to the nearest directory holding go.mod or .git.
func WorkspaceRoot(start string) (string, bool) {
	start = strings.TrimSpace(start)
	if start == "" {
		return "", false
	}
	for dir := filepath.Clean(start); ; {
		for _, marker := range []string{"go.mod", ".git"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func logFileStem(appName string) string {
	stem := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '-'
		}
		return r
	}, strings.TrimSpace(appName))
	if stem = strings.Trim(stem, "-"); stem == "" {
		return DefaultAppName
	}
	return stem
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
