package blocklayer

import "lockin/internal/platform"

// dnsLayer flushes the resolver cache so a freshly written hosts/pf
// block takes effect immediately instead of waiting out a stale cache
// entry.
type dnsLayer struct {
	plat platform.Platform
}

func newDNSLayer(plat platform.Platform) *dnsLayer {
	return &dnsLayer{plat: plat}
}

func (d *dnsLayer) flush() error {
	return d.plat.FlushDNSCache()
}
