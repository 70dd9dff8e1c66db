package main

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"

	bleproxy "github.com/NetScout-Go/Plugin-ble-http-proxy"
)

// Characteristic is the small interface every BLE characteristic this
// daemon exports implements: object path, UUID, flags, and exporting
// itself on the bus. Read, write and notify methods are not part of the
// interface; each concrete type defines the ones it supports, and
// godbus routes BlueZ's calls to them by object path. There is no
// UUID-keyed dispatch table.
type Characteristic interface {
	Path() dbus.ObjectPath
	UUID() string
	Flags() []string
	export(conn *dbus.Conn, service dbus.ObjectPath) error
}

const gattCharacteristicIface = "org.bluez.GattCharacteristic1"

// defaultReadChunkSize bounds a single ReadValue reply when the caller
// hasn't told us its negotiated MTU, kept comfortably under the
// largest ATT_MTU BlueZ will ever negotiate (517) minus its 3-byte
// header.
const defaultReadChunkSize = 512

// attHeaderLen mirrors bleproxy's unexported constant of the same name:
// the 3-byte ATT protocol header BlueZ reserves ahead of every
// characteristic value.
const attHeaderLen = 3

// readBlob implements BlueZ's "Read Blob" long-read protocol: a value
// longer than one ATT_MTU-3 chunk is read across several ReadValue
// calls, each with an increasing options["offset"], the same slicing
// pi_zero_ble_service.py's characteristic ReadValue methods do over
// resp_data/status_json.
func readBlob(data []byte, options map[string]dbus.Variant) []byte {
	offset := 0
	if v, ok := options["offset"]; ok {
		switch o := v.Value().(type) {
		case uint16:
			offset = int(o)
		case uint32:
			offset = int(o)
		}
	}
	if offset >= len(data) {
		return []byte{}
	}

	chunkSize := defaultReadChunkSize
	if v, ok := options["mtu"]; ok {
		switch mtu := v.Value().(type) {
		case uint16:
			chunkSize = int(mtu) - attHeaderLen
		case uint32:
			chunkSize = int(mtu) - attHeaderLen
		}
		if chunkSize < 1 {
			chunkSize = defaultReadChunkSize
		}
	}

	end := offset + chunkSize
	if end > len(data) {
		end = len(data)
	}
	return data[offset:end]
}

// baseCharacteristic holds the D-Bus plumbing every characteristic
// needs (object path, property export) so the three concrete
// characteristics below only implement their read/write/notify
// behavior.
type baseCharacteristic struct {
	path    dbus.ObjectPath
	uuid    string
	flags   []string
	conn    *dbus.Conn
	service dbus.ObjectPath
}

func (b *baseCharacteristic) Path() dbus.ObjectPath { return b.path }
func (b *baseCharacteristic) UUID() string          { return b.uuid }
func (b *baseCharacteristic) Flags() []string       { return b.flags }

func (b *baseCharacteristic) exportProperties(conn *dbus.Conn, notifying *bool) error {
	props := map[string]map[string]*prop.Prop{
		gattCharacteristicIface: {
			"UUID":    {Value: b.uuid, Writable: false, Emit: prop.EmitFalse},
			"Service": {Value: b.service, Writable: false, Emit: prop.EmitFalse},
			"Flags":   {Value: b.flags, Writable: false, Emit: prop.EmitFalse},
		},
	}
	if notifying != nil {
		props[gattCharacteristicIface]["Notifying"] = &prop.Prop{Value: *notifying, Writable: false, Emit: prop.EmitTrue}
	}
	_, err := prop.Export(conn, b.path, props)
	return err
}

// RequestCharacteristic is the write / write-without-response ingress
// point. Every accepted write is handed to onFrame, which runs the
// reassembly admit step and, on COMPLETE, enqueues a worker job.
type RequestCharacteristic struct {
	baseCharacteristic
	onFrame func(raw []byte, devicePath string, attMTU int) error
}

func NewRequestCharacteristic(service dbus.ObjectPath, index int, onFrame func(raw []byte, devicePath string, attMTU int) error) *RequestCharacteristic {
	return &RequestCharacteristic{
		baseCharacteristic: baseCharacteristic{
			path:    service + dbus.ObjectPath(fmt.Sprintf("/char%d", index)),
			uuid:    requestUUIDStr,
			flags:   []string{"write", "write-without-response"},
			service: service,
		},
		onFrame: onFrame,
	}
}

func (c *RequestCharacteristic) export(conn *dbus.Conn, service dbus.ObjectPath) error {
	c.conn = conn
	if err := conn.Export(c, c.path, gattCharacteristicIface); err != nil {
		return err
	}
	return c.exportProperties(conn, nil)
}

// WriteValue is the BlueZ-invoked method for both write flavors. BlueZ
// passes the writing device's object path and the link's negotiated ATT
// MTU in options, which the GATT layer needs for per-connection
// reassembly ownership and chunk sizing. spec.md §5 requires the
// handler never to suspend between admitting a frame and returning, so
// onFrame must itself be non-blocking (it enqueues onto the worker pool
// rather than running the HTTP round trip here).
func (c *RequestCharacteristic) WriteValue(value []byte, options map[string]dbus.Variant) *dbus.Error {
	devicePath := ""
	if v, ok := options["device"]; ok {
		if p, ok := v.Value().(dbus.ObjectPath); ok {
			devicePath = string(p)
		}
	}
	attMTU := 0
	if v, ok := options["mtu"]; ok {
		switch mtu := v.Value().(type) {
		case uint16:
			attMTU = int(mtu)
		case uint32:
			attMTU = int(mtu)
		}
	}
	if err := c.onFrame(value, devicePath, attMTU); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// ResponseCharacteristic is the read / notify egress point. Notify
// subscription state is a single flag for the whole characteristic, not
// tracked per connection: every pushed frame goes to every subscribed
// central, and frames cannot be targeted at one central.
type ResponseCharacteristic struct {
	baseCharacteristic
	notifying    bool
	onStartNotify func()
	onStopNotify  func()
	lastValue     []byte
}

func NewResponseCharacteristic(service dbus.ObjectPath, index int) *ResponseCharacteristic {
	return &ResponseCharacteristic{
		baseCharacteristic: baseCharacteristic{
			path:    service + dbus.ObjectPath(fmt.Sprintf("/char%d", index)),
			uuid:    responseUUIDStr,
			flags:   []string{"read", "notify"},
			service: service,
		},
	}
}

func (c *ResponseCharacteristic) export(conn *dbus.Conn, service dbus.ObjectPath) error {
	c.conn = conn
	if err := conn.Export(c, c.path, gattCharacteristicIface); err != nil {
		return err
	}
	return c.exportProperties(conn, &c.notifying)
}

func (c *ResponseCharacteristic) ReadValue(options map[string]dbus.Variant) ([]byte, *dbus.Error) {
	return readBlob(c.lastValue, options), nil
}

func (c *ResponseCharacteristic) StartNotify() *dbus.Error {
	c.notifying = true
	if c.onStartNotify != nil {
		c.onStartNotify()
	}
	return nil
}

func (c *ResponseCharacteristic) StopNotify() *dbus.Error {
	c.notifying = false
	if c.onStopNotify != nil {
		c.onStopNotify()
	}
	return nil
}

// PushFrame emits a PropertiesChanged signal carrying the new value,
// which is how BlueZ delivers a GATT notification to subscribers.
func (c *ResponseCharacteristic) PushFrame(frame []byte) error {
	c.lastValue = frame
	if !c.notifying {
		return bleproxy.ErrNotificationQueueFull
	}
	return c.conn.Emit(c.path, "org.freedesktop.DBus.Properties.PropertiesChanged",
		gattCharacteristicIface,
		map[string]dbus.Variant{"Value": dbus.MakeVariant(frame)},
		[]string{},
	)
}

// StatusCharacteristic is the read / notify JSON status surface.
type StatusCharacteristic struct {
	baseCharacteristic
	notifying bool
	snapshot  func() []byte
}

func NewStatusCharacteristic(service dbus.ObjectPath, index int, snapshot func() []byte) *StatusCharacteristic {
	return &StatusCharacteristic{
		baseCharacteristic: baseCharacteristic{
			path:    service + dbus.ObjectPath(fmt.Sprintf("/char%d", index)),
			uuid:    statusUUIDStr,
			flags:   []string{"read", "notify"},
			service: service,
		},
		snapshot: snapshot,
	}
}

func (c *StatusCharacteristic) export(conn *dbus.Conn, service dbus.ObjectPath) error {
	c.conn = conn
	if err := conn.Export(c, c.path, gattCharacteristicIface); err != nil {
		return err
	}
	return c.exportProperties(conn, &c.notifying)
}

func (c *StatusCharacteristic) ReadValue(options map[string]dbus.Variant) ([]byte, *dbus.Error) {
	return readBlob(c.snapshot(), options), nil
}

func (c *StatusCharacteristic) StartNotify() *dbus.Error {
	c.notifying = true
	return nil
}

func (c *StatusCharacteristic) StopNotify() *dbus.Error {
	c.notifying = false
	return nil
}

// PushSnapshot notifies current subscribers of a fresh status
// snapshot; a no-op if nobody has subscribed.
func (c *StatusCharacteristic) PushSnapshot() error {
	if !c.notifying {
		return nil
	}
	return c.conn.Emit(c.path, "org.freedesktop.DBus.Properties.PropertiesChanged",
		gattCharacteristicIface,
		map[string]dbus.Variant{"Value": dbus.MakeVariant(c.snapshot())},
		[]string{},
	)
}
