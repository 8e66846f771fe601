package scheme

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"
)

func (r *Registrar) register(scheme string) error {
	dataHome, err := r.dataHome()
	if err != nil {
		return err
	}
	dir := filepath.Join(dataHome, "applications")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return xerrors.Errorf("could not create %s: %w", dir, err)
	}
	name := DesktopFileName(scheme)
	p := filepath.Join(dir, name)
	entry := desktopEntry(scheme, r.Command)
	if b, err := os.ReadFile(p); err == nil && bytes.Equal(b, entry) {
		r.Logf("desktop entry %s is up to date", p)
	} else if err := os.WriteFile(p, entry, 0644); err != nil {
		return xerrors.Errorf("could not write the desktop entry: %w", err)
	}

	mimeType := "x-scheme-handler/" + scheme
	if err := r.Run("xdg-mime", "default", name, mimeType); err != nil {
		return xerrors.Errorf("could not set the default handler of %s: %w", mimeType, err)
	}
	if err := r.Run("update-desktop-database", dir); err != nil {
		r.Logf("could not update the desktop database: %s", err)
	}
	return nil
}

func (r *Registrar) dataHome() (string, error) {
	if r.DataHome != "" {
		return r.DataHome, nil
	}
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", xerrors.Errorf("could not determine the home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share"), nil
}

// DesktopFileName returns the name of the desktop entry for the scheme.
func DesktopFileName(scheme string) string {
	r := strings.NewReplacer("+", "-", ".", "-")
	return fmt.Sprintf("frameio-oauth-%s.desktop", r.Replace(strings.ToLower(scheme)))
}

func desktopEntry(scheme string, command []string) []byte {
	var exec []string
	for _, arg := range command {
		exec = append(exec, quoteExecArg(arg))
	}
	exec = append(exec, "%u")
	var b bytes.Buffer
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	b.WriteString("Name=Frame.io OAuth Helper\n")
	fmt.Fprintf(&b, "Exec=%s\n", strings.Join(exec, " "))
	b.WriteString("Terminal=false\n")
	b.WriteString("NoDisplay=true\n")
	fmt.Fprintf(&b, "MimeType=x-scheme-handler/%s;\n", scheme)
	return b.Bytes()
}

// quoteExecArg quotes an argument of the Exec key of a desktop entry.
func quoteExecArg(arg string) string {
	arg = strings.ReplaceAll(arg, "%", "%%")
	if arg != "" && !strings.ContainsAny(arg, " \t\n\"'\\><~|&;$*?#()`=") {
		return arg
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`)
	return `"` + r.Replace(arg) + `"`
}
