// Package descriptor implements the static device-descriptor table and
// restartable iterator every vendor registers its supported models
// into, adapted from a network-scan-and-collect shape to a walk over a
// fixed, process-global table built at init time instead of over the
// wire.
package descriptor

import "divecomputer/pkg/dc/transport"

// Family names one vendor/product line's device implementation, the
// bridge from a Descriptor to its family-specific open function.
type Family string

const (
	FamilySuuntoVyper        Family = "suunto_vyper"
	FamilySuuntoCommon2      Family = "suunto_common2"
	FamilyReefnetSensus      Family = "reefnet_sensus"
	FamilyReefnetSensusPro   Family = "reefnet_sensuspro"
	FamilyReefnetSensusUltra Family = "reefnet_sensusultra"
	FamilyMaresNemo          Family = "mares_nemo"
	FamilyHWOSTC             Family = "hw_ostc"
)

// TransportMask is a bitmask over transport.Kind values.
type TransportMask uint32

func bit(k transport.Kind) TransportMask { return 1 << TransportMask(k) }

// Supports reports whether the mask includes the given transport kind.
func (m TransportMask) Supports(k transport.Kind) bool { return m&bit(k) != 0 }

// Descriptor is an immutable record describing one supported device:
// vendor, product, family, model number, and the set of transports it
// can be reached over.
type Descriptor struct {
	Vendor     string
	Product    string
	Family     Family
	Model      uint32
	Transports TransportMask
}

// table is the process-global static registry.
var table = []Descriptor{
	{Vendor: "Suunto", Product: "Vyper", Family: FamilySuuntoVyper, Model: 0x01, Transports: bit(transport.KindSerial)},
	{Vendor: "Suunto", Product: "Spyder", Family: FamilySuuntoVyper, Model: 0x02, Transports: bit(transport.KindSerial)},
	{Vendor: "Suunto", Product: "Vyper2", Family: FamilySuuntoCommon2, Model: 0x10, Transports: bit(transport.KindSerial) | bit(transport.KindUSB)},
	{Vendor: "Suunto", Product: "D9", Family: FamilySuuntoCommon2, Model: 0x0E, Transports: bit(transport.KindSerial) | bit(transport.KindUSB)},
	{Vendor: "Reefnet", Product: "Sensus", Family: FamilyReefnetSensus, Model: 0x01, Transports: bit(transport.KindSerial)},
	{Vendor: "Reefnet", Product: "Sensus Pro", Family: FamilyReefnetSensusPro, Model: 0x02, Transports: bit(transport.KindSerial)},
	{Vendor: "Reefnet", Product: "Sensus Ultra", Family: FamilyReefnetSensusUltra, Model: 0x03, Transports: bit(transport.KindSerial) | bit(transport.KindUSB)},
	{Vendor: "Mares", Product: "Nemo", Family: FamilyMaresNemo, Model: 0x14, Transports: bit(transport.KindSerial)},
	{Vendor: "Heinrichs-Weikamp", Product: "OSTC", Family: FamilyHWOSTC, Model: 0x01, Transports: bit(transport.KindSerial) | bit(transport.KindBLE)},
}

// All returns a restartable Registry positioned before the first
// descriptor in the static table.
func All() *Registry {
	return &Registry{items: table}
}

// Filter returns a restartable Registry over only the descriptors that
// support the given transport kind.
func Filter(k transport.Kind) *Registry {
	var items []Descriptor
	for _, d := range table {
		if d.Transports.Supports(k) {
			items = append(items, d)
		}
	}
	return &Registry{items: items}
}

// Registry is a restartable lazy sequence over a fixed slice of
// descriptors. Zero value is not usable; obtain one via All or Filter.
type Registry struct {
	items []Descriptor
	pos   int
}

// Next returns the next descriptor and true, or a zero Descriptor and
// false once the sequence is exhausted.
func (r *Registry) Next() (Descriptor, bool) {
	if r.pos >= len(r.items) {
		return Descriptor{}, false
	}
	d := r.items[r.pos]
	r.pos++
	return d, true
}

// Reset rewinds the Registry so Next walks the same sequence again,
// the "restartable" half of the contract.
func (r *Registry) Reset() { r.pos = 0 }

// Len reports the number of descriptors in the sequence.
func (r *Registry) Len() int { return len(r.items) }
