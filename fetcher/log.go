package fetcher

import (
	log "github.com/sirupsen/logrus"
)

type LogHolder struct {
	FlowID     string
	DeviceUDID string
	Product    string
	BuildID    string
	Message    string
	Metric     string
}

func processFields(logholder LogHolder) *log.Entry {
	logger := log.WithFields(log.Fields{})
	if logholder.FlowID != "" {
		logger = logger.WithFields(
			log.Fields{
				"flow_id": logholder.FlowID,
			})
	}

	if logholder.DeviceUDID != "" {
		logger = logger.WithFields(
			log.Fields{
				"device_udid": logholder.DeviceUDID,
			})
	}

	if logholder.Product != "" {
		logger = logger.WithFields(
			log.Fields{
				"product": logholder.Product,
			})
	}

	if logholder.BuildID != "" {
		logger = logger.WithFields(
			log.Fields{
				"build_id": logholder.BuildID,
			})
	}

	if logholder.Metric != "" {
		logger = logger.WithFields(
			log.Fields{
				"metric": logholder.Metric,
			})
	}

	return logger
}

func DebugLogger(logholder LogHolder) {
	logger := processFields(logholder)
	logger.Debug(logholder.Message)
}

func InfoLogger(logholder LogHolder) {
	logger := processFields(logholder)
	logger.Info(logholder.Message)
}

func WarnLogger(logholder LogHolder) {
	logger := processFields(logholder)

	logger.Warn(logholder.Message)
}

func ErrorLogger(logholder LogHolder) {
	logger := processFields(logholder)

	logger.Error(logholder.Message)
}
