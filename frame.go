package bleproxy

// IDLen is the width of the opaque correlation ID the central chooses
// and the proxy echoes back on every frame of the matching response.
const IDLen = 16

// HeaderLen is the fixed prefix every frame carries ahead of its
// payload chunk: the 16-byte correlation ID plus one flags byte.
const HeaderLen = IDLen + 1

const (
	FlagFirst byte = 1 << 0
	FlagLast  byte = 1 << 1
	// flagReservedMask covers every bit the wire format reserves for
	// future use. Frames that set any of them are rejected outright
	// rather than silently masked, so a future flag can be added
	// without risking silent misinterpretation by old proxies.
	flagReservedMask byte = ^(FlagFirst | FlagLast)
)

// ID is the 16-byte opaque correlation ID. The proxy never parses it as
// text; it exists purely as a map key and an echo value.
type ID [IDLen]byte

// Frame is the decoded form of the on-wire unit exchanged over both the
// request and response characteristics.
type Frame struct {
	ID      ID
	Flags   byte
	Payload []byte
}

func (f Frame) First() bool { return f.Flags&FlagFirst != 0 }
func (f Frame) Last() bool  { return f.Flags&FlagLast != 0 }

// Encode concatenates the correlation ID, flags byte, and payload into
// a single wire frame, validated against DefaultATTMTU. Callers should
// have already split payload to fit MTUPayload(DefaultATTMTU), but
// Encode still validates the bound so a bug upstream fails loudly
// instead of silently corrupting the stream.
func Encode(id ID, flags byte, payload []byte) ([]byte, error) {
	return encodeWithMTU(id, flags, payload, attMTU_Default)
}

// EncodeWithMTU is Encode parameterized on the connection's actual
// negotiated ATT MTU, per spec: MTU_payload = ATT_MTU - 3 - 17.
func EncodeWithMTU(id ID, flags byte, payload []byte, attMTU int) ([]byte, error) {
	return encodeWithMTU(id, flags, payload, attMTU)
}

func encodeWithMTU(id ID, flags byte, payload []byte, attMTU int) ([]byte, error) {
	if HeaderLen+len(payload) > attMTU-attHeaderLen {
		return nil, ErrFrameTooLarge
	}
	out := make([]byte, HeaderLen+len(payload))
	copy(out[0:IDLen], id[:])
	out[IDLen] = flags
	copy(out[HeaderLen:], payload)
	return out, nil
}

// Decode parses a raw frame into its correlation ID, flags, and
// payload. It never allocates beyond the payload slice copy needed to
// detach it from the caller's buffer.
func Decode(frame []byte) (Frame, error) {
	if len(frame) < HeaderLen {
		return Frame{}, ErrFrameTooShort
	}
	flags := frame[IDLen]
	if flags&flagReservedMask != 0 {
		return Frame{}, ErrFrameReservedBits
	}
	var id ID
	copy(id[:], frame[0:IDLen])
	payload := make([]byte, len(frame)-HeaderLen)
	copy(payload, frame[HeaderLen:])
	return Frame{ID: id, Flags: flags, Payload: payload}, nil
}

// attHeaderLen is the ATT protocol header BLE reserves ahead of every
// characteristic value, per spec.md's MTU_payload formula.
const attHeaderLen = 3

// DefaultATTMTU is the conservative default used when a caller (or a
// legacy transport that never reports negotiated MTU) calls the
// MTU-less Encode, or when the GATT layer hasn't threaded per-connection
// negotiated MTU through yet. 515 matches spec.md's worked example.
const DefaultATTMTU = 515

const attMTU_Default = DefaultATTMTU

// MTUPayload returns the maximum payload a frame may carry for a given
// negotiated ATT MTU, floored at the minimum-MTU fallback of 6 bytes
// spec.md requires (ATT_MTU=23: 23-3-17=3, which is below the 6-byte
// floor the spec calls out, so very small MTUs clamp upward to keep
// forward progress possible; in practice BlueZ never negotiates below
// 23 and real centrals negotiate at least 47 for any of this to be
// usable, so the floor is a safety net, not the common path).
func MTUPayload(attMTU int) int {
	n := attMTU - attHeaderLen - HeaderLen
	if n < 6 {
		return 6
	}
	return n
}
