package main

import (
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/sirupsen/logrus"
)

const statsviewPath = "/debug/statsview"

// launchStatsview serves live runtime charts (goroutines, heap, GC) for long
// runs.
func launchStatsview(addr string, logger logrus.FieldLogger) {
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(addr))
		mgr := statsview.New()
		mgr.Start()
	}()

	logger.WithField("url", "http://"+addr+statsviewPath).Info("Stats server available")
}
