package services

import "errors"

// Command rejections. These describe the request, not the system, so retrying cannot help.
var (
	ErrUnknownAmbulance = errors.New("unknown ambulance")
	ErrUnknownHospital  = errors.New("unknown hospital")
	ErrUnknownZone      = errors.New("unknown zone")
	ErrUnknownIncident  = errors.New("unknown incident")
	ErrNoAmbulances     = errors.New("no ambulances available")
	ErrNoHospitals      = errors.New("no hospitals available")
	ErrNoActiveRoute    = errors.New("no active route")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrInvalidCommand   = errors.New("invalid command")
)

// IsRejected reports whether err is a command rejection rather than a transient failure
func IsRejected(err error) bool {
	for _, target := range []error{
		ErrUnknownAmbulance, ErrUnknownHospital, ErrUnknownZone, ErrUnknownIncident,
		ErrNoAmbulances, ErrNoHospitals, ErrNoActiveRoute, ErrUnknownCommand, ErrInvalidCommand,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
