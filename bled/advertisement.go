package main

import (
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
)

const (
	leAdvertisementIface    = "org.bluez.LEAdvertisement1"
	leAdvertisingManagerIface = "org.bluez.LEAdvertisingManager1"
	advertisementPath       = dbus.ObjectPath("/org/nettool/bleproxy/advertisement0")
)

// Advertisement is the exported LEAdvertisement1 object: peripheral
// role, the service UUID, a manufacturer-data blob identifying this
// protocol, and IncludeTxPower for RSSI-based ranging (spec.md §4.6 /
// §9 — the prototype's two versions disagreed on this flag, the spec
// resolves it to true).
type Advertisement struct {
	conn        *dbus.Conn
	adapterPath dbus.ObjectPath
	localName   string
	registered  bool
}

func NewAdvertisement(conn *dbus.Conn, adapterPath dbus.ObjectPath, localName string) *Advertisement {
	return &Advertisement{conn: conn, adapterPath: adapterPath, localName: localName}
}

func (a *Advertisement) manufacturerData() map[uint16]dbus.Variant {
	return map[uint16]dbus.Variant{
		manufacturerCompanyID: dbus.MakeVariant([]byte{protocolVersion}),
	}
}

// Export publishes the LEAdvertisement1 object and its properties.
func (a *Advertisement) Export() error {
	if err := a.conn.Export(a, advertisementPath, leAdvertisementIface); err != nil {
		return err
	}
	props := map[string]map[string]*prop.Prop{
		leAdvertisementIface: {
			"Type":             {Value: "peripheral", Writable: false, Emit: prop.EmitFalse},
			"LocalName":        {Value: a.localName, Writable: false, Emit: prop.EmitFalse},
			"ServiceUUIDs":     {Value: []string{serviceUUIDStr}, Writable: false, Emit: prop.EmitFalse},
			"ManufacturerData": {Value: a.manufacturerData(), Writable: false, Emit: prop.EmitFalse},
			"IncludeTxPower":   {Value: true, Writable: false, Emit: prop.EmitFalse},
		},
	}
	_, err := prop.Export(a.conn, advertisementPath, props)
	return err
}

// Release implements LEAdvertisement1.Release, called by BlueZ when it
// drops the advertisement (adapter reset, app crash cleanup elsewhere).
func (a *Advertisement) Release() *dbus.Error {
	a.registered = false
	return nil
}

// Register calls LEAdvertisingManager1.RegisterAdvertisement.
func (a *Advertisement) Register() error {
	manager := a.conn.Object(bluezService, a.adapterPath)
	call := manager.Call(leAdvertisingManagerIface+".RegisterAdvertisement", 0, advertisementPath, map[string]dbus.Variant{})
	if call.Err != nil {
		return call.Err
	}
	a.registered = true
	return nil
}

// Unregister calls LEAdvertisingManager1.UnregisterAdvertisement.
// spec.md §4.6 requires this to happen before the application is torn
// down; lifecycle.go sequences the two calls.
func (a *Advertisement) Unregister() error {
	if !a.registered {
		return nil
	}
	manager := a.conn.Object(bluezService, a.adapterPath)
	call := manager.Call(leAdvertisingManagerIface+".UnregisterAdvertisement", 0, advertisementPath)
	a.registered = false
	return call.Err
}
