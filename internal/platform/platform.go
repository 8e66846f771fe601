// Package platform binds the helper to the capabilities of the OS.
package platform

import (
	"context"

	"github.com/int128/oauth2scheme/handoff"
	"github.com/int128/oauth2scheme/internal/helper"
	"github.com/int128/oauth2scheme/internal/instance"
	"golang.org/x/xerrors"
)

// Registrar registers a URL scheme.
type Registrar interface {
	Register(scheme string) error
}

// OS implements helper.OS with the file lock and forwarding endpoint in the directory.
type OS struct {
	Dir       handoff.Dir
	Registrar Registrar
	Logf      func(format string, args ...interface{})
}

var _ helper.OS = &OS{}

func (o *OS) RegisterScheme(scheme string) error {
	return o.Registrar.Register(scheme)
}

func (o *OS) AcquireInstance() (helper.Instance, error) {
	p, err := instance.Acquire(o.Dir, o.Logf)
	if err != nil {
		if xerrors.Is(err, instance.ErrLocked) {
			return nil, helper.ErrSecondaryInstance
		}
		return nil, err
	}
	return p, nil
}

func (o *OS) Forward(ctx context.Context, url string) error {
	return instance.Forward(ctx, o.Dir, url)
}
