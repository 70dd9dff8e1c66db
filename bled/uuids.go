package main

// Fixed UUIDs for the service and its three characteristics, per
// spec.md §4.6. Parsed once at init with satori/go.uuid — the same
// library the teacher uses for its own service UUID type in
// krd/bluetooth.go's AddService(serviceUUID uuid.UUID) — even though
// BlueZ's D-Bus API wants these back out as plain strings; parsing
// them up front catches a typo in the constant at process start
// rather than at the first failed RegisterApplication call.

import uuid "github.com/satori/go.uuid"

const (
	serviceUUIDStr  = "00001234-0000-1000-8000-00805f9b34fb"
	requestUUIDStr  = "00001235-0000-1000-8000-00805f9b34fb"
	responseUUIDStr = "00001236-0000-1000-8000-00805f9b34fb"
	statusUUIDStr   = "00001237-0000-1000-8000-00805f9b34fb"
)

var (
	serviceUUID  = uuid.Must(uuid.FromString(serviceUUIDStr))
	requestUUID  = uuid.Must(uuid.FromString(requestUUIDStr))
	responseUUID = uuid.Must(uuid.FromString(responseUUIDStr))
	statusUUID   = uuid.Must(uuid.FromString(statusUUIDStr))
)

// manufacturerCompanyID and protocolVersion populate the advertisement's
// manufacturer-data blob, per spec.md §4.6.
const (
	manufacturerCompanyID uint16 = 0x0059
	protocolVersion       byte   = 0x01
)
