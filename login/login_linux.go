//go:build linux

package login

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func desktopPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "autostart", "duck.desktop"), nil
}

func Enabled() bool {
	path, err := desktopPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// quoteExec quotes one Exec= argument following the freedesktop Exec key rules.
func quoteExec(arg string) string {
	if !strings.ContainsAny(arg, " \t\n\"'\\><~|&;$*?#()`") {
		return arg
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`)
	return `"` + r.Replace(arg) + `"`
}

// Enable writes an XDG autostart entry running the current binary with args.
func Enable(args []string) error {
	cmd, err := command(args)
	if err != nil {
		return err
	}
	quoted := make([]string, len(cmd))
	for i, a := range cmd {
		quoted[i] = quoteExec(a)
	}

	entry := fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=duck
Comment=Lower music while other apps play sound
Exec=%s
Terminal=false
X-GNOME-Autostart-enabled=true
`, strings.Join(quoted, " "))

	path, err := desktopPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create autostart dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(entry), 0644); err != nil {
		return fmt.Errorf("write autostart entry: %w", err)
	}
	return nil
}

func Disable() error {
	path, err := desktopPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove autostart entry: %w", err)
	}
	return nil
}
