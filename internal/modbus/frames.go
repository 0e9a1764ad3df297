package modbus

import (
	"fmt"
	"strings"
)

// Function codes used by the emulator.
const (
	FuncReadHoldingRegisters uint8 = 0x03
	FuncReadInputRegisters   uint8 = 0x04
)

// crc16 computes the Modbus RTU checksum (poly 0xA001, init 0xFFFF).
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

func withCRC(frame []byte) []byte {
	crc := crc16(frame)
	return append(frame, byte(crc&0xFF), byte(crc>>8))
}

// ReadRequestFrame builds an RTU read-registers request.
func ReadRequestFrame(slave, function uint8, addr, quantity uint16) []byte {
	return withCRC([]byte{
		slave, function,
		byte(addr >> 8), byte(addr & 0xFF),
		byte(quantity >> 8), byte(quantity & 0xFF),
	})
}

// ReadResponseFrame builds an RTU read-registers response carrying the
// given register values.
func ReadResponseFrame(slave, function uint8, values []uint16) []byte {
	frame := []byte{slave, function, byte(len(values) * 2)}
	for _, v := range values {
		frame = append(frame, byte(v>>8), byte(v&0xFF))
	}
	return withCRC(frame)
}

// ExceptionFrame builds an RTU exception response.
func ExceptionFrame(slave, function, code uint8) []byte {
	return withCRC([]byte{slave, function | 0x80, code})
}

// FrameHex renders a frame the way serial sniffers do: uppercase hex
// octets separated by spaces.
func FrameHex(frame []byte) string {
	parts := make([]string, len(frame))
	for i, b := range frame {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}
