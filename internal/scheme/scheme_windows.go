package scheme

import (
	"strings"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
	"golang.org/x/xerrors"
)

func (r *Registrar) register(scheme string) error {
	base := `Software\Classes\` + scheme
	k, _, err := registry.CreateKey(registry.CURRENT_USER, base, registry.SET_VALUE)
	if err != nil {
		return xerrors.Errorf("could not create the key %s: %w", base, err)
	}
	defer k.Close()
	if err := k.SetStringValue("", "URL:"+scheme); err != nil {
		return xerrors.Errorf("could not set the description: %w", err)
	}
	if err := k.SetStringValue("URL Protocol", ""); err != nil {
		return xerrors.Errorf("could not set URL Protocol: %w", err)
	}

	path := base + `\shell\open\command`
	c, _, err := registry.CreateKey(registry.CURRENT_USER, path, registry.SET_VALUE)
	if err != nil {
		return xerrors.Errorf("could not create the key %s: %w", path, err)
	}
	defer c.Close()
	if err := c.SetStringValue("", commandLine(r.Command)); err != nil {
		return xerrors.Errorf("could not set the command: %w", err)
	}
	r.Logf("registered %s in HKCU", scheme)
	return nil
}

func commandLine(command []string) string {
	var args []string
	for _, arg := range command {
		args = append(args, windows.EscapeArg(arg))
	}
	args = append(args, `"%1"`)
	return strings.Join(args, " ")
}
