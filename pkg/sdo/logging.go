package sdo

import log "github.com/sirupsen/logrus"

// newComponentLogger is the one place both FSMs get their *log.Entry
// from, keeping the "component" field name consistent between client
// and server logs the way the teacher's sdo_client.go/sdo_server.go
// share a single logging convention.
func newComponentLogger(component string) *log.Entry {
	return log.WithField("component", component)
}
