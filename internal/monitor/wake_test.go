// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vigilerr "github.com/vigil-watch/vigil/pkg/errors"
)

func TestMagicPacketLayout(t *testing.T) {
	packet, err := MagicPacket("aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	require.Len(t, packet, 102)

	for i := 0; i < 6; i++ {
		assert.Equal(t, byte(0xFF), packet[i])
	}

	mac := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	for rep := 0; rep < 16; rep++ {
		assert.Equal(t, mac, packet[6+rep*6:6+(rep+1)*6])
	}
}

func TestMagicPacketRejectsBadAddresses(t *testing.T) {
	for _, addr := range []string{"", "not-a-mac", "aa:bb:cc:dd:ee"} {
		_, err := MagicPacket(addr)
		require.Error(t, err, addr)
		assert.Equal(t, vigilerr.CodeMonitorWakeInvalid, vigilerr.CodeOf(err))
	}
}

func TestMagicPacketRejectsEUI64(t *testing.T) {
	_, err := MagicPacket("02:00:5e:10:00:00:00:01")
	require.Error(t, err)
	assert.Equal(t, vigilerr.CodeMonitorWakeInvalid, vigilerr.CodeOf(err))
}

func TestWOLWakerSendsPacket(t *testing.T) {
	var sent [][]byte
	w := &WOLWaker{send: func(p []byte) error {
		sent = append(sent, p)
		return nil
	}}

	require.NoError(t, w.Wake("aa:bb:cc:dd:ee:ff"))
	require.Len(t, sent, 1)
	assert.Len(t, sent[0], 102)
}

func TestWOLWakerInvalidAddrSendsNothing(t *testing.T) {
	var sends int
	w := &WOLWaker{send: func([]byte) error {
		sends++
		return nil
	}}

	require.Error(t, w.Wake("nope"))
	assert.Zero(t, sends)
}
