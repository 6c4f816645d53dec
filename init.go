package uthreads

import log "github.com/sirupsen/logrus"

func init() {
	// Setup logrus
	//log.SetReportCaller(true)
	log.SetFormatter(&log.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})
	log.SetLevel(log.InfoLevel)
}
