//go:build !linux && !windows

package scheme

// On darwin, Launch Services delivers a URL as an Apple event to an application bundle,
// which a plain executable cannot receive.
func (r *Registrar) register(string) error {
	return ErrUnsupported
}
