package bleproxy

import (
	"fmt"
)

var ErrFrameTooShort = fmt.Errorf("frame shorter than the 17-byte header")
var ErrFrameReservedBits = fmt.Errorf("frame flags set a reserved bit")
var ErrFrameTooLarge = fmt.Errorf("encoded frame exceeds the negotiated ATT MTU")
var ErrUnknownID = fmt.Errorf("continuation frame for an unknown correlation ID")
var ErrOversize = fmt.Errorf("reassembled request exceeds the per-request size cap")
var ErrOverload = fmt.Errorf("reassembly table is at its concurrent-request cap")
var ErrBadRequest = fmt.Errorf("malformed HTTP request")
var ErrOriginUnreachable = fmt.Errorf("origin server unreachable")
var ErrOriginTimeout = fmt.Errorf("origin server did not respond in time")
var ErrNotificationQueueFull = fmt.Errorf("response notification queue did not drain before the response budget expired")
var ErrNoAdapter = fmt.Errorf("no Bluetooth adapter found on the system bus")
var ErrBusUnavailable = fmt.Errorf("system object bus is unavailable")
var ErrAlreadyRegistered = fmt.Errorf("GATT application already registered")
