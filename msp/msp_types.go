package msp

// Waypoint actions understood by INAV.
const (
	WpActionWaypoint = 1
	WpActionLand     = 8
)

// WpFlagLast marks the final waypoint of a mission.
const WpFlagLast = 0xa5

type SetGetWpData struct {
	WpNo      uint8
	Action    uint8
	Latitude  int32 // degrees * 1e7
	Longitude int32 // degrees * 1e7
	Altitude  int32 // cm
	P1        int16
	P2        int16
	P3        int16
	Flag      uint8
}

type RawGpsData struct {
	FixType      uint8
	NumSat       uint8
	Latitude     int32
	Longitude    int32
	Altitude     int16 // m
	GroundSpeed  uint16
	GroundCourse uint16
	Hdop         uint16
}

type AltitudeData struct {
	EstimatedAltitude int32 // cm
	Vario             int16 // cm/s
	BaroAltitude      int32 // cm
}

type NavStatusData struct {
	Mode           uint8
	State          uint8
	ActiveWpAction uint8
	ActiveWpNumber uint8
	Error          uint8
	HeadingTarget  int16
}

// RC channel values as sent with SetRawRc, AETR order followed by AUX.
type RawRcData struct {
	Channels [8]uint16
}

const (
	RcLow  = 1000
	RcMid  = 1500
	RcHigh = 2000
)
