//go:build !darwin

package platform

type defaultPlatform struct{}

func (defaultPlatform) HardwareUUID() (string, error)              { return "", ErrUnsupported }
func (defaultPlatform) SetImmutable(path string) error             { return ErrUnsupported }
func (defaultPlatform) ClearImmutable(path string) error           { return ErrUnsupported }
func (defaultPlatform) IsImmutable(path string) (bool, error)      { return false, ErrUnsupported }
func (defaultPlatform) ChownRoot(path string) error                { return ErrUnsupported }
func (defaultPlatform) IsOwnedByRoot(path string) (bool, error)    { return false, ErrUnsupported }
func (defaultPlatform) FlushDNSCache() error                       { return ErrUnsupported }
func (defaultPlatform) EnablePF() (string, error)                  { return "", ErrUnsupported }
func (defaultPlatform) DisablePF(token string) error               { return ErrUnsupported }
func (defaultPlatform) LoadPFAnchorRules(a, r string) error        { return ErrUnsupported }
func (defaultPlatform) FlushPFAnchor(a string) error               { return ErrUnsupported }
func (defaultPlatform) PFAnchorHasTable(a, t string) (bool, error) { return false, ErrUnsupported }
func (defaultPlatform) QuitAppGraceful(appName string) bool        { return false }
func (defaultPlatform) KillApp(appName string) bool                { return false }
func (defaultPlatform) Bootstrap(plistPath string) error           { return ErrUnsupported }
func (defaultPlatform) Bootout(label string) error                 { return ErrUnsupported }
func (defaultPlatform) IsBootstrapped(label string) (bool, error)  { return false, ErrUnsupported }
