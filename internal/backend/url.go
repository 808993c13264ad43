package backend

import (
	"fmt"

	"github.com/JBibu/backupone/internal/constants"
)

// Ports holds the two places the backend may listen.
type Ports struct {
	Service int
	Sidecar int
}

// DefaultPorts returns the built-in service and sidecar ports.
func DefaultPorts() Ports {
	return Ports{Service: constants.ServicePort, Sidecar: constants.DefaultSidecarPort}
}

// URL returns the backend base URL: the service port when the installed
// service is in use, otherwise the sidecar port.
func (p Ports) URL(usingService bool) string {
	if usingService {
		return localURL(p.Service)
	}
	return localURL(p.Sidecar)
}

// URL returns the backend base URL using the default service port.
func URL(usingService bool, sidecarPort int) string {
	return Ports{Service: constants.ServicePort, Sidecar: sidecarPort}.URL(usingService)
}

func localURL(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}
