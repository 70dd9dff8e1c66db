package main

import (
	"github.com/godbus/dbus/v5"

	bleproxy "github.com/NetScout-Go/Plugin-ble-http-proxy"
)

const (
	bluezService   = "org.bluez"
	adapterIface   = "org.bluez.Adapter1"
	propertiesIface = "org.freedesktop.DBus.Properties"
)

// FindAdapter walks the ObjectManager tree rooted at /org/bluez and
// returns the path of the first object advertising org.bluez.Adapter1,
// per spec.md §4.6's "locate the first adapter" startup step.
func FindAdapter(conn *dbus.Conn) (dbus.ObjectPath, error) {
	root := conn.Object(bluezService, "/")
	var managed map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if err := root.Call(objectManagerIface+".GetManagedObjects", 0).Store(&managed); err != nil {
		return "", err
	}
	for path, ifaces := range managed {
		if _, ok := ifaces[adapterIface]; ok {
			return path, nil
		}
	}
	return "", bleproxy.ErrNoAdapter
}

// PowerOn sets the adapter's Powered property, idempotently.
func PowerOn(conn *dbus.Conn, adapter dbus.ObjectPath) error {
	obj := conn.Object(bluezService, adapter)
	call := obj.Call(propertiesIface+".Set", 0, adapterIface, "Powered", dbus.MakeVariant(true))
	return call.Err
}
