// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package monitor

import (
	"net"

	vigilerr "github.com/vigil-watch/vigil/pkg/errors"
)

// Waker sends a wake signal to a sleeping host. Fire-and-forget: a
// delivered packet carries no acknowledgement.
type Waker interface {
	Wake(hardwareAddr string) error
}

// WOLWaker broadcasts a Wake-on-LAN magic packet on UDP port 9.
type WOLWaker struct {
	// send overrides packet transmission (for testing).
	send func(packet []byte) error
}

// NewWOLWaker creates the default broadcast waker.
func NewWOLWaker() *WOLWaker {
	return &WOLWaker{}
}

// Wake parses hardwareAddr and broadcasts its magic packet.
func (w *WOLWaker) Wake(hardwareAddr string) error {
	packet, err := MagicPacket(hardwareAddr)
	if err != nil {
		return err
	}

	send := w.send
	if send == nil {
		send = broadcast
	}
	return send(packet)
}

// MagicPacket builds the Wake-on-LAN payload for hardwareAddr: six 0xFF
// bytes followed by the MAC repeated sixteen times.
func MagicPacket(hardwareAddr string) ([]byte, error) {
	if hardwareAddr == "" {
		return nil, vigilerr.New(vigilerr.CodeMonitorWakeInvalid, "no hardware address configured")
	}

	mac, err := net.ParseMAC(hardwareAddr)
	if err != nil {
		return nil, vigilerr.Wrapf(err, vigilerr.CodeMonitorWakeInvalid, "parsing hardware address %s", hardwareAddr)
	}
	if len(mac) != 6 {
		return nil, vigilerr.Errorf(vigilerr.CodeMonitorWakeInvalid, "hardware address %s is not EUI-48", hardwareAddr)
	}

	packet := make([]byte, 0, 6+16*6)
	for i := 0; i < 6; i++ {
		packet = append(packet, 0xFF)
	}
	for i := 0; i < 16; i++ {
		packet = append(packet, mac...)
	}
	return packet, nil
}

func broadcast(packet []byte) error {
	conn, err := net.Dial("udp", "255.255.255.255:9")
	if err != nil {
		return vigilerr.Wrapf(err, vigilerr.CodeMonitorProbeFailure, "opening broadcast socket")
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write(packet); err != nil {
		return vigilerr.Wrapf(err, vigilerr.CodeMonitorProbeFailure, "sending magic packet")
	}
	return nil
}
