package main

import (
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestRequestCharacteristicWriteValueExtractsDeviceAndMTU(t *testing.T) {
	var gotRaw []byte
	var gotDevice string
	var gotMTU int
	c := NewRequestCharacteristic(servicePath, 0, func(raw []byte, devicePath string, attMTU int) error {
		gotRaw = raw
		gotDevice = devicePath
		gotMTU = attMTU
		return nil
	})

	options := map[string]dbus.Variant{
		"device": dbus.MakeVariant(dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF")),
		"mtu":    dbus.MakeVariant(uint16(185)),
	}
	if dberr := c.WriteValue([]byte("hello"), options); dberr != nil {
		t.Fatalf("WriteValue returned error: %v", dberr)
	}

	if string(gotRaw) != "hello" {
		t.Fatalf("got payload %q", gotRaw)
	}
	if gotDevice != "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF" {
		t.Fatalf("got device %q", gotDevice)
	}
	if gotMTU != 185 {
		t.Fatalf("got mtu %d want 185", gotMTU)
	}
}

func TestRequestCharacteristicWriteValueMissingOptions(t *testing.T) {
	var gotDevice string
	gotMTU := -1
	c := NewRequestCharacteristic(servicePath, 0, func(raw []byte, devicePath string, attMTU int) error {
		gotDevice = devicePath
		gotMTU = attMTU
		return nil
	})

	if dberr := c.WriteValue([]byte("x"), map[string]dbus.Variant{}); dberr != nil {
		t.Fatalf("WriteValue returned error: %v", dberr)
	}
	if gotDevice != "" {
		t.Fatalf("expected empty device path, got %q", gotDevice)
	}
	if gotMTU != 0 {
		t.Fatalf("expected zero mtu, got %d", gotMTU)
	}
}

func TestRequestCharacteristicWriteValuePropagatesOnFrameError(t *testing.T) {
	c := NewRequestCharacteristic(servicePath, 0, func(raw []byte, devicePath string, attMTU int) error {
		return errBoom
	})
	if dberr := c.WriteValue([]byte("x"), nil); dberr == nil {
		t.Fatalf("expected a dbus error")
	}
}

var errBoom = &staticError{"boom"}

type staticError struct{ msg string }

func (e *staticError) Error() string { return e.msg }

func TestResponseCharacteristicReadValueHonorsOffset(t *testing.T) {
	c := NewResponseCharacteristic(servicePath, 1)
	c.lastValue = []byte("0123456789")

	full, dberr := c.ReadValue(map[string]dbus.Variant{})
	if dberr != nil {
		t.Fatalf("ReadValue: %v", dberr)
	}
	if string(full) != "0123456789" {
		t.Fatalf("got %q want full value at offset 0", full)
	}

	chunk, dberr := c.ReadValue(map[string]dbus.Variant{"offset": dbus.MakeVariant(uint16(4))})
	if dberr != nil {
		t.Fatalf("ReadValue: %v", dberr)
	}
	if string(chunk) != "456789" {
		t.Fatalf("got %q want tail starting at offset 4", chunk)
	}

	beyond, dberr := c.ReadValue(map[string]dbus.Variant{"offset": dbus.MakeVariant(uint16(100))})
	if dberr != nil {
		t.Fatalf("ReadValue: %v", dberr)
	}
	if len(beyond) != 0 {
		t.Fatalf("offset past end must return empty, got %q", beyond)
	}
}

func TestResponseCharacteristicReadValueHonorsMTUChunkSize(t *testing.T) {
	c := NewResponseCharacteristic(servicePath, 1)
	c.lastValue = []byte("abcdefghij")

	chunk, dberr := c.ReadValue(map[string]dbus.Variant{"mtu": dbus.MakeVariant(uint16(6))})
	if dberr != nil {
		t.Fatalf("ReadValue: %v", dberr)
	}
	if string(chunk) != "abc" {
		t.Fatalf("got %q want first 3 bytes (mtu 6 - 3-byte ATT header)", chunk)
	}
}

func TestStatusCharacteristicReadValueHonorsOffset(t *testing.T) {
	snapshot := []byte(`{"status":"running","uptime":42}`)
	c := NewStatusCharacteristic(servicePath, 2, func() []byte { return snapshot })

	chunk, dberr := c.ReadValue(map[string]dbus.Variant{"offset": dbus.MakeVariant(uint16(10))})
	if dberr != nil {
		t.Fatalf("ReadValue: %v", dberr)
	}
	if string(chunk) != string(snapshot[10:]) {
		t.Fatalf("got %q want %q", chunk, snapshot[10:])
	}
}
