package main

import (
	"github.com/godbus/dbus/v5"
	"github.com/op/go-logging"

	bleproxy "github.com/NetScout-Go/Plugin-ble-http-proxy"
)

const deviceIface = "org.bluez.Device1"

// watchDeviceConnections subscribes to PropertiesChanged on
// org.bluez.Device1 and keeps the stats tracker and reassembly table in
// sync with BlueZ's view of which centrals are connected, per spec.md
// §4.6's connection state machine. A disconnect drops that device's
// in-flight reassembly entries immediately rather than waiting for the
// GC sweep, per §8 scenario S6.
func watchDeviceConnections(conn *dbus.Conn, table *bleproxy.Table, tracker *bleproxy.Tracker, log *logging.Logger, stop <-chan struct{}) error {
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		return err
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	for {
		select {
		case <-stop:
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			handleDeviceSignal(sig, table, tracker, log)
		}
	}
}

func handleDeviceSignal(sig *dbus.Signal, table *bleproxy.Table, tracker *bleproxy.Tracker, log *logging.Logger) {
	if len(sig.Body) < 2 {
		return
	}
	iface, ok := sig.Body[0].(string)
	if !ok || iface != deviceIface {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}
	connectedVar, ok := changed["Connected"]
	if !ok {
		return
	}
	connected, ok := connectedVar.Value().(bool)
	if !ok {
		return
	}

	devicePath := string(sig.Path)
	if connected {
		tracker.MarkConnected(devicePath)
		log.Noticef("central connected: %s", devicePath)
		return
	}
	tracker.MarkDisconnected(devicePath)
	if n := table.DropDevice(devicePath); n > 0 {
		log.Noticef("central disconnected: %s, dropped %d in-flight reassembly entries", devicePath, n)
	} else {
		log.Noticef("central disconnected: %s", devicePath)
	}
}
