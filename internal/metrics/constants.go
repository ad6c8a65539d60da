package metrics

import (
	"time"

	"go.opencensus.io/tag"
)

const (
	defaultMetricsPrefix = "event_relay"

	defaultMemoryInterval = time.Second
)

var (
	routeTagKey, _    = tag.NewKey("route")    //nolint:gochecknoglobals
	methodTagKey, _   = tag.NewKey("method")   //nolint:gochecknoglobals
	statusTagKey, _   = tag.NewKey("status")   //nolint:gochecknoglobals
	itemTypeTagKey, _ = tag.NewKey("itemType") //nolint:gochecknoglobals
	reasonTagKey, _   = tag.NewKey("reason")   //nolint:gochecknoglobals
	outcomeTagKey, _  = tag.NewKey("outcome")  //nolint:gochecknoglobals
	categoryTagKey, _ = tag.NewKey("category") //nolint:gochecknoglobals
	sourceTagKey, _   = tag.NewKey("source")   //nolint:gochecknoglobals
)
