package msp

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	ApiVersion = 1   //out message
	FcVariant  = 2   //out message
	FcVersion  = 3   //out message
	BoardInfo  = 4   //out message
	BuildInfo  = 5   //out message
	RawGps     = 106 //out message    fix, numsat, lat, lon, alt, speed, ground course
	Altitude   = 109 //out message    altitude, variometer
	Wp         = 118 //out message    get a WP, WP# is in the payload, returns (WP#, lat, lon, alt, flags)
	NavStatus  = 121 //out message    Returns navigation status
	SetRawRc   = 200 //in message     8+ rc channels
	SetWp      = 209 //in message     sets a given WP (WP#,lat, lon, alt, flags)
	DebugMsg   = 253 //out message    debug string buffer
)

// WpGcsNav is the waypoint slot INAV flies to while in GCS navigation mode.
const WpGcsNav = 255

type InvalidPacketError struct {
	Reason string
}

func (e *InvalidPacketError) Error() string {
	if e.Reason == "" {
		return "invalid packet"
	}
	return "invalid packet: " + e.Reason
}

func invalid(format string, args ...interface{}) error {
	return &InvalidPacketError{Reason: fmt.Sprintf(format, args...)}
}

func mspV2Encode(cmd uint16, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("$X<")
	buf.WriteByte(0)
	_ = binary.Write(&buf, binary.LittleEndian, cmd)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(payload)))
	buf.Write(payload)
	buf.WriteByte(checksum(buf.Bytes()[3:]))
	return buf.Bytes()
}

func checksum(b []byte) byte {
	crc := byte(0)
	for _, v := range b {
		crc = crc8DvbS2(crc, v)
	}
	return crc
}

func crc8DvbS2(crc, a byte) byte {
	crc ^= a
	for ii := 0; ii < 8; ii++ {
		if (crc & 0x80) != 0 {
			crc = (crc << 1) ^ 0xD5
		} else {
			crc = crc << 1
		}
	}
	return crc
}

// MSP speaks MSPv2 over a byte stream. Writes are serialized so commands
// issued from several goroutines never interleave on the wire.
type MSP struct {
	Port   io.ReadWriter
	logger *logrus.Logger
	mu     sync.Mutex
}

type Frame struct {
	Code       uint16
	Payload    []byte
	payloadPos int
}

// Reads out from the frame Payload and advances the payload
// position pointer by the size of the variable pointed by out.
func (f *Frame) Read(out interface{}) error {
	switch x := out.(type) {
	case *uint8:
		if f.BytesRemaining() < 1 {
			return io.EOF
		}
		*x = f.Payload[f.payloadPos]
		f.payloadPos++
	case *uint16:
		if f.BytesRemaining() < 2 {
			return io.EOF
		}
		*x = binary.LittleEndian.Uint16(f.Payload[f.payloadPos:])
		f.payloadPos += 2
	case *int16:
		var u uint16
		if err := f.Read(&u); err != nil {
			return err
		}
		*x = int16(u)
	case *uint32:
		if f.BytesRemaining() < 4 {
			return io.EOF
		}
		*x = binary.LittleEndian.Uint32(f.Payload[f.payloadPos:])
		f.payloadPos += 4
	case *int32:
		var u uint32
		if err := f.Read(&u); err != nil {
			return err
		}
		*x = int32(u)
	default:
		v := reflect.ValueOf(out)
		if v.Kind() == reflect.Ptr && v.Elem().Kind() == reflect.Struct {
			elem := v.Elem()
			for i := 0; i < elem.NumField(); i++ {
				if err := f.Read(elem.Field(i).Addr().Interface()); err != nil {
					return err
				}
			}
			return nil
		}
		if v.Kind() == reflect.Ptr && v.Elem().Kind() == reflect.Array {
			elem := v.Elem()
			for i := 0; i < elem.Len(); i++ {
				if err := f.Read(elem.Index(i).Addr().Interface()); err != nil {
					return err
				}
			}
			return nil
		}
		return fmt.Errorf("can't decode MSP payload into type %T", out)
	}
	return nil
}

func (f *Frame) BytesRemaining() int {
	return len(f.Payload) - f.payloadPos
}

func New(port io.ReadWriter, logger *logrus.Logger) *MSP {
	return &MSP{
		Port:   port,
		logger: logger,
	}
}

func EncodeArgs(w *bytes.Buffer, args ...interface{}) error {
	for _, arg := range args {
		switch x := arg.(type) {
		case uint8:
			w.WriteByte(x)
		case uint16, int16, uint32, int32:
			_ = binary.Write(w, binary.LittleEndian, x)
		default:
			v := reflect.ValueOf(arg)
			switch v.Kind() {
			case reflect.Slice, reflect.Array:
				for i := 0; i < v.Len(); i++ {
					if err := EncodeArgs(w, v.Index(i).Interface()); err != nil {
						return err
					}
				}
			case reflect.Struct:
				for i := 0; i < v.NumField(); i++ {
					if err := EncodeArgs(w, v.Field(i).Interface()); err != nil {
						return err
					}
				}
			default:
				return fmt.Errorf("can't encode MSP value of type %T", arg)
			}
		}
	}
	return nil
}

func (m *MSP) WriteCmd(cmd uint16, args ...interface{}) (int, error) {
	var buf bytes.Buffer
	if err := EncodeArgs(&buf, args...); err != nil {
		return -1, err
	}
	frame := mspV2Encode(cmd, buf.Bytes())
	m.logger.Debugf("< %s", hex.EncodeToString(frame))

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Port.Write(frame)
}

func (m *MSP) ReadFrame() (*Frame, error) {
	hdr := make([]byte, 8)

	if _, err := io.ReadFull(m.Port, hdr[:3]); err != nil {
		return nil, err
	}

	if hdr[0] != '$' {
		return nil, invalid("header char 0x%02x", hdr[0])
	}

	if hdr[2] != '<' && hdr[2] != '>' && hdr[2] != '!' {
		return nil, invalid("direction char 0x%02x", hdr[2])
	}

	switch hdr[1] {
	case 'M':
		return nil, invalid("MSPv1 frame")
	case 'X':
	default:
		return nil, invalid("unknown MSP version %c", hdr[1])
	}

	if _, err := io.ReadFull(m.Port, hdr[3:]); err != nil {
		return nil, err
	}
	code := binary.LittleEndian.Uint16(hdr[4:])
	payloadLength := binary.LittleEndian.Uint16(hdr[6:])

	body := make([]byte, int(payloadLength)+1)
	if _, err := io.ReadFull(m.Port, body); err != nil {
		return nil, err
	}
	payload, crc := body[:payloadLength], body[payloadLength]

	m.logger.Debugf("> %s", hex.EncodeToString(append(hdr, body...)))

	want := checksum(append(hdr[3:], payload...))
	if crc != want {
		return nil, invalid("crc 0x%02x, expecting 0x%02x in cmd %d", crc, want, code)
	}
	if hdr[2] == '!' {
		return nil, invalid("flight controller rejected cmd %d", code)
	}
	return &Frame{
		Code:    code,
		Payload: payload,
	}, nil
}
