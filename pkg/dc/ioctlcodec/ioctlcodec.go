// Package ioctlcodec implements a 32-bit ioctl request encoding:
// (dir<<30) | (size<<16) | (type<<8) | nr. This is the same bit layout
// internal/driver/device/ioctl.go builds for Linux misc-device control
// (IOC/IOR/IOW/IOWR), generalized from its 8/8/13/3-bit split (which
// targets the classic Linux <asm/ioctl.h> layout) to a 2/14/8/8-bit
// split so 'type' can carry a full ASCII byte for namespacing
// ('s','u','b').
package ioctlcodec

// Dir is the ioctl transfer direction.
type Dir uint32

const (
	DirNone Dir = iota
	DirRead
	DirWrite
	DirReadWrite
)

const (
	nrBits   = 8
	typeBits = 8
	sizeBits = 14
	dirBits  = 2

	nrShift   = 0
	typeShift = nrShift + nrBits
	sizeShift = typeShift + typeBits
	dirShift  = sizeShift + sizeBits

	nrMask   = 1<<nrBits - 1
	typeMask = 1<<typeBits - 1
	sizeMask = 1<<sizeBits - 1
	dirMask  = 1<<dirBits - 1

	// MaxSize is the largest payload size the size field can encode
	//.
	MaxSize = sizeMask
)

// Request is a decoded ioctl request word.
type Request struct {
	Dir  Dir
	Type byte // ASCII namespace letter, e.g. 's', 'u', 'b'
	Nr   byte
	Size uint32
}

// Encode packs a Request into its 32-bit wire form.
func Encode(r Request) uint32 {
	return (uint32(r.Dir)&dirMask)<<dirShift |
		(r.Size&sizeMask)<<sizeShift |
		(uint32(r.Type)&typeMask)<<typeShift |
		(uint32(r.Nr) & nrMask)
}

// Decode unpacks a 32-bit ioctl request word.
func Decode(word uint32) Request {
	return Request{
		Dir:  Dir((word >> dirShift) & dirMask),
		Type: byte((word >> typeShift) & typeMask),
		Nr:   byte((word >> nrShift) & nrMask),
		Size: (word >> sizeShift) & sizeMask,
	}
}

// Namespace letters for the defined requests.
const (
	NamespaceSerial = 's'
	NamespaceUSB    = 'u'
	NamespaceBLE    = 'b'
)

// BLE sub-request numbers under the 'b' namespace.
const (
	BLEGetName        = 0
	BLEGetPincode     = 1
	BLEGetAccessCode  = 2
	BLESetAccessCode  = 3
	BLECharacteristic = 4
)

// USBControlTransfer is the payload shape for the ('u',0,variable)
// request: a USB control transfer followed by wLength data bytes.
type USBControlTransfer struct {
	BmRequestType byte
	BRequest      byte
	WValue        uint16
	WIndex        uint16
	WLength       uint16
	Data          []byte
}

// BLECharacteristicIO is the payload shape for the ('b',4,variable)
// request: a 16-byte UUID followed by the data to read or write.
type BLECharacteristicIO struct {
	UUID [16]byte
	Data []byte
}

// SerialLatencyHint is the payload for the ('s',0,u32) write request.
type SerialLatencyHint struct {
	Milliseconds uint32
}
