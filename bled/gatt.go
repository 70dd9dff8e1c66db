package main

import (
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
)

const (
	gattServiceIface    = "org.bluez.GattService1"
	gattManagerIface    = "org.bluez.GattManager1"
	objectManagerIface  = "org.freedesktop.DBus.ObjectManager"
	basePath            = dbus.ObjectPath("/org/nettool/bleproxy")
	servicePath         = basePath + "/service0"
)

// Application is the exported GATT hierarchy: one primary service and
// its characteristics, registered as a single unit via BlueZ's
// GattManager1.RegisterApplication, and torn down the same way. It
// also implements org.freedesktop.DBus.ObjectManager itself, which is
// how BlueZ discovers the hierarchy's objects at registration time.
type Application struct {
	conn            *dbus.Conn
	adapterPath     dbus.ObjectPath
	characteristics []Characteristic
	registered      bool
}

func NewApplication(conn *dbus.Conn, adapterPath dbus.ObjectPath) *Application {
	return &Application{conn: conn, adapterPath: adapterPath}
}

// Export publishes the service object, every characteristic, and this
// object's own ObjectManager interface on the bus. It does not yet
// register with BlueZ — that is a separate bus call in Register, kept
// distinct so export failures (a local bug) are distinguishable from
// registration failures (BlueZ rejecting the application).
func (a *Application) Export(chars []Characteristic) error {
	a.characteristics = chars

	if err := a.conn.Export(a, basePath, objectManagerIface); err != nil {
		return err
	}

	serviceProps := map[string]map[string]*prop.Prop{
		gattServiceIface: {
			"UUID":    {Value: serviceUUIDStr, Writable: false, Emit: prop.EmitFalse},
			"Primary": {Value: true, Writable: false, Emit: prop.EmitFalse},
		},
	}
	if _, err := prop.Export(a.conn, servicePath, serviceProps); err != nil {
		return err
	}

	for _, c := range chars {
		if err := c.export(a.conn, servicePath); err != nil {
			return err
		}
	}
	return nil
}

// GetManagedObjects implements org.freedesktop.DBus.ObjectManager,
// describing the service and characteristic objects and their
// properties to BlueZ at RegisterApplication time.
func (a *Application) GetManagedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, *dbus.Error) {
	objects := map[dbus.ObjectPath]map[string]map[string]dbus.Variant{
		servicePath: {
			gattServiceIface: {
				"UUID":    dbus.MakeVariant(serviceUUIDStr),
				"Primary": dbus.MakeVariant(true),
			},
		},
	}
	for _, c := range a.characteristics {
		objects[c.Path()] = map[string]map[string]dbus.Variant{
			gattCharacteristicIface: {
				"UUID":    dbus.MakeVariant(c.UUID()),
				"Service": dbus.MakeVariant(servicePath),
				"Flags":   dbus.MakeVariant(c.Flags()),
			},
		}
	}
	return objects, nil
}

// Register calls GattManager1.RegisterApplication on the adapter and
// returns BlueZ's error as-is (an already-registered application
// included); Start retries it and then treats the error as fatal.
func (a *Application) Register() error {
	manager := a.conn.Object("org.bluez", a.adapterPath)
	call := manager.Call(gattManagerIface+".RegisterApplication", 0, basePath, map[string]dbus.Variant{})
	if call.Err != nil {
		return call.Err
	}
	a.registered = true
	return nil
}

// Unregister calls GattManager1.UnregisterApplication. spec.md §4.6
// requires advertisement to be unregistered before the application;
// callers are responsible for that ordering (see lifecycle.go).
func (a *Application) Unregister() error {
	if !a.registered {
		return nil
	}
	manager := a.conn.Object("org.bluez", a.adapterPath)
	call := manager.Call(gattManagerIface+".UnregisterApplication", 0, basePath)
	a.registered = false
	return call.Err
}
