package fc

import (
	"fmt"
	"strings"

	"github.com/gtu-nova/nova-letter/msp"
)

// Info describes the firmware running on the board.
type Info struct {
	ApiMajor     byte
	ApiMinor     byte
	Variant      string
	VersionMajor byte
	VersionMinor byte
	VersionPatch byte
	BoardID      string
	TargetName   string
	Revision     string
}

func (i Info) String() string {
	if i.Variant == "" || i.VersionMajor == 0 || i.BoardID == "" {
		return ""
	}
	targetName := ""
	if i.TargetName != "" {
		targetName = ", target " + i.TargetName
	}
	return fmt.Sprintf("%s %d.%d.%d (board %s%s)", i.Variant, i.VersionMajor, i.VersionMinor, i.VersionPatch, i.BoardID, targetName)
}

func (i Info) VersionGte(major, minor, patch byte) bool {
	return i.VersionMajor > major || (i.VersionMajor == major && i.VersionMinor > minor) ||
		(i.VersionMajor == major && i.VersionMinor == minor && i.VersionPatch >= patch)
}

func (f *FC) updateInfo(fn func(i *Info)) {
	f.mu.Lock()
	fn(&f.info)
	info := f.info
	f.mu.Unlock()
	if s := info.String(); s != "" {
		f.logger.Info(s)
	}
}

func handleApiVersion(fr msp.Frame, f *FC) error {
	if len(fr.Payload) < 3 {
		return fmt.Errorf("short api version payload %v", fr.Payload)
	}
	f.mu.Lock()
	f.info.ApiMajor, f.info.ApiMinor = fr.Payload[1], fr.Payload[2]
	f.mu.Unlock()
	f.logger.Infof("MSP API version %d.%d (protocol %d)", fr.Payload[1], fr.Payload[2], fr.Payload[0])
	return nil
}

func handleFcVariant(fr msp.Frame, f *FC) error {
	f.updateInfo(func(i *Info) { i.Variant = string(fr.Payload) })
	return nil
}

func handleFcVersion(fr msp.Frame, f *FC) error {
	if len(fr.Payload) < 3 {
		return fmt.Errorf("short version payload %v", fr.Payload)
	}
	f.updateInfo(func(i *Info) {
		i.VersionMajor = fr.Payload[0]
		i.VersionMinor = fr.Payload[1]
		i.VersionPatch = fr.Payload[2]
	})
	return nil
}

func handleBoardInfo(fr msp.Frame, f *FC) error {
	if len(fr.Payload) < 4 {
		return fmt.Errorf("short board info payload %v", fr.Payload)
	}
	f.updateInfo(func(i *Info) {
		// BoardID is always 4 characters
		i.BoardID = string(fr.Payload[:4])
		// HW revision, OSD type and VCP flag follow, then in recent
		// firmware the length-prefixed target name.
		if len(fr.Payload) >= 9 {
			n := int(fr.Payload[8])
			if len(fr.Payload) >= 9+n {
				i.TargetName = string(fr.Payload[9 : 9+n])
			}
		}
	})
	return nil
}

func handleBuildInfo(fr msp.Frame, f *FC) error {
	if len(fr.Payload) < 19 {
		return fmt.Errorf("short build info payload %v", fr.Payload)
	}
	buildDate := string(fr.Payload[:11])
	buildTime := string(fr.Payload[11:19])
	// Revision is 8 characters in INAV but 7 in BF/CF
	rev := string(fr.Payload[19:])
	f.mu.Lock()
	f.info.Revision = rev
	f.mu.Unlock()
	f.logger.Infof("Build %s (built on %s @ %s)", rev, buildDate, buildTime)
	return nil
}

func handleRawGps(fr msp.Frame, f *FC) error {
	var r msp.RawGpsData
	if err := fr.Read(&r); err != nil {
		return err
	}
	f.mu.Lock()
	f.gps = r
	f.haveFix = r.FixType >= 2
	f.mu.Unlock()
	return nil
}

func handleAltitude(fr msp.Frame, f *FC) error {
	var r msp.AltitudeData
	if err := fr.Read(&r); err != nil {
		return err
	}
	f.mu.Lock()
	f.altitude = r.EstimatedAltitude
	f.haveAlt = true
	f.mu.Unlock()
	return nil
}

func handleNavStatus(fr msp.Frame, f *FC) error {
	var r msp.NavStatusData
	if err := fr.Read(&r); err != nil {
		return err
	}
	f.mu.Lock()
	prev, had := f.nav, f.haveNav
	f.nav = r
	f.haveNav = true
	f.mu.Unlock()
	if r.Error != 0 && (!had || prev.Error != r.Error) {
		f.logger.Warnf("Navigation error %d (mode %d, state %d)", r.Error, r.Mode, r.State)
	}
	return nil
}

func handleWp(fr msp.Frame, f *FC) error {
	var r msp.SetGetWpData
	if err := fr.Read(&r); err != nil {
		return err
	}
	f.logger.Debugf("No: %d, Lat: %f, Lon: %f, Alt: %d", r.WpNo, fromE7(r.Latitude), fromE7(r.Longitude), r.Altitude)
	return nil
}

func handleDebugMsg(fr msp.Frame, f *FC) error {
	s := strings.Trim(string(fr.Payload), " \r\n\t\x00")
	f.logger.Debugf("[DEBUG] %s", s)
	return nil
}
