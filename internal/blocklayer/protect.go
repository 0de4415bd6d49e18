package blocklayer

import (
	"fmt"

	"lockin/internal/platform"
)

// protectLayer write-protects the daemon's own installed artifacts
// (the binaries and the launchd plist) so a root-capable adversary
// can't simply delete or replace the software mid-session. protect
// and unprotect are idempotent over an arbitrary path list.
type protectLayer struct {
	plat platform.Platform
}

func newProtectLayer(plat platform.Platform) *protectLayer {
	return &protectLayer{plat: plat}
}

func (p *protectLayer) protect(paths []string) error {
	for _, path := range paths {
		if err := p.plat.SetImmutable(path); err != nil {
			return fmt.Errorf("blocklayer: protecting %s: %w", path, err)
		}
	}
	return nil
}

func (p *protectLayer) unprotect(paths []string) error {
	for _, path := range paths {
		if err := p.plat.ClearImmutable(path); err != nil {
			return fmt.Errorf("blocklayer: unprotecting %s: %w", path, err)
		}
	}
	return nil
}

func (p *protectLayer) allProtected(paths []string) (bool, error) {
	for _, path := range paths {
		ok, err := p.plat.IsImmutable(path)
		if err != nil {
			return false, fmt.Errorf("blocklayer: checking %s: %w", path, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
