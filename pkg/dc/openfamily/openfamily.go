// Package openfamily is the bridge from a descriptor.Family to its
// concrete Open function — the piece that turns a Descriptor plus an
// already-configured Transport into a live device.Device without every
// caller switching on Family itself. Grounded on
// internal/discovery/discovery.go's pattern of mapping a discovered
// kind to the handler that drives it.
package openfamily

import (
	"context"

	"divecomputer/pkg/dc/descriptor"
	"divecomputer/pkg/dc/device"
	"divecomputer/pkg/dc/device/hwostc"
	"divecomputer/pkg/dc/device/maresnemo"
	"divecomputer/pkg/dc/device/reefnetsensus"
	"divecomputer/pkg/dc/device/reefnetsensuspro"
	"divecomputer/pkg/dc/device/reefnetsensusultra"
	"divecomputer/pkg/dc/device/suuntocommon2"
	"divecomputer/pkg/dc/device/suuntovyper"
	"divecomputer/pkg/dc/status"
	"divecomputer/pkg/dc/transport"
)

// Open dispatches to the Open function of d's family, returning the
// resulting device.Device through the common interface. Returns
// status.Unsupported for a Family not present in descriptor's static
// table.
func Open(ctx context.Context, d descriptor.Descriptor, t transport.Transport) (device.Device, error) {
	switch d.Family {
	case descriptor.FamilySuuntoVyper:
		return suuntovyper.Open(ctx, d, t)
	case descriptor.FamilySuuntoCommon2:
		return suuntocommon2.Open(ctx, d, t)
	case descriptor.FamilyReefnetSensus:
		return reefnetsensus.Open(ctx, d, t)
	case descriptor.FamilyReefnetSensusPro:
		return reefnetsensuspro.Open(ctx, d, t)
	case descriptor.FamilyReefnetSensusUltra:
		return reefnetsensusultra.Open(ctx, d, t)
	case descriptor.FamilyMaresNemo:
		return maresnemo.Open(ctx, d, t)
	case descriptor.FamilyHWOSTC:
		return hwostc.Open(ctx, d, t)
	default:
		return nil, status.New(status.Unsupported, "openfamily: unrecognized family "+string(d.Family))
	}
}
