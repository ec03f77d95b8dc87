package v1

import (
	"net/http"

	"github.com/JPKribs/snapcontrol/utilities"
	"github.com/JPKribs/snapcontrol/version"
)

// MARK: handleStatus
func (a *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	ipList, err := utilities.GetSystemIPv4s()
	if err != nil {
		a.logger.Warn("Failed to get system IP", "error", err)
		ipList = []string{}
	}

	interfaces, err := utilities.GetInterfaceDetails()
	if err != nil {
		a.logger.Warn("Failed to get interface details", "error", err)
		interfaces = []utilities.NetworkInterface{}
	}

	status := StatusResponse{
		Version:    version.AsString(),
		Discovery:  a.discovery,
		Ready:      a.health.IsReady(),
		Registry:   a.registry.Stats(),
		SystemIP:   ipList,
		Interfaces: interfaces,
		Timestamp:  utilities.CurrentTimestamp(),
	}

	a.respondWithSuccess(w, "System status", status)
}
