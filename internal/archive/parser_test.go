package archive

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	perr "dukafeed/internal/platform/errors"
)

func encodeRecord(msOffset, askRaw, bidRaw uint32, askVol, bidVol float32) []byte {
	buf := make([]byte, rawTickSize)
	binary.BigEndian.PutUint32(buf[0:4], msOffset)
	binary.BigEndian.PutUint32(buf[4:8], askRaw)
	binary.BigEndian.PutUint32(buf[8:12], bidRaw)
	binary.BigEndian.PutUint32(buf[12:16], math.Float32bits(askVol))
	binary.BigEndian.PutUint32(buf[16:20], math.Float32bits(bidVol))
	return buf
}

func TestParseTicks_DecodesFields(t *testing.T) {
	slot := HourSlot{Year: 2024, Month: 1, Day: 7, Hour: 10}
	var raw bytes.Buffer
	raw.Write(encodeRecord(0, 110000, 109990, 1.5, 2.5))
	raw.Write(encodeRecord(1500, 110010, 110000, 1.0, 1.0))

	batch, err := ParseTicks(slot, raw.Bytes(), 1e5)
	require.NoError(t, err)
	require.Len(t, batch.Ticks, 2)

	require.Equal(t, slot.Start(), batch.Ticks[0].Timestamp)
	require.InDelta(t, 1.1, batch.Ticks[0].Ask, 1e-9)
	require.InDelta(t, 1.0999, batch.Ticks[0].Bid, 1e-9)

	require.Equal(t, slot.Start().Add(1500*time.Millisecond), batch.Ticks[1].Timestamp)
}

func TestParseTicks_CrossedQuoteIsAccepted(t *testing.T) {
	slot := HourSlot{Year: 2024, Month: 1, Day: 7, Hour: 10}
	raw := encodeRecord(0, 109990, 110000, 1.0, 1.0) // bid_raw > ask_raw

	batch, err := ParseTicks(slot, raw, 1e5)
	require.NoError(t, err)
	require.Len(t, batch.Ticks, 1)
	require.Less(t, batch.Ticks[0].Ask, batch.Ticks[0].Bid)
}

func TestParseTicks_TrailingPartialRecordIsCorrupt(t *testing.T) {
	slot := HourSlot{Year: 2024, Month: 1, Day: 7, Hour: 10}
	raw := append(encodeRecord(0, 1, 1, 0, 0), 0x01, 0x02, 0x03)

	_, err := ParseTicks(slot, raw, 1e5)
	require.Error(t, err)
	require.Equal(t, perr.KindCorrupt, perr.KindOf(err))
}

func TestParseTicks_EmptyInputYieldsEmptyBatch(t *testing.T) {
	slot := HourSlot{Year: 2024, Month: 1, Day: 7, Hour: 10}
	batch, err := ParseTicks(slot, nil, 1e5)
	require.NoError(t, err)
	require.Empty(t, batch.Ticks)
}

func TestParseTicks_LengthMatchesBytesDiv20(t *testing.T) {
	slot := HourSlot{Year: 2024, Month: 1, Day: 7, Hour: 10}
	var raw bytes.Buffer
	for i := 0; i < 50; i++ {
		raw.Write(encodeRecord(uint32(i), 1, 1, 0, 0))
	}
	batch, err := ParseTicks(slot, raw.Bytes(), 1)
	require.NoError(t, err)
	require.Len(t, batch.Ticks, len(raw.Bytes())/rawTickSize)
}
