// Package rate reports exchange request-weight usage so operators can see
// how close the gateway runs to the per-minute ban threshold.
package rate

import (
	"context"
	"net/http"
	"strconv"

	futures "github.com/adshao/go-binance/v2/futures"

	"optionflow/logger"
)

// FetchRequestWeightLimit queries the futures exchangeInfo endpoint to
// retrieve the REQUEST_WEIGHT per minute limit. It returns 0 if the limit
// cannot be determined.
func FetchRequestWeightLimit(ctx context.Context, client *futures.Client) (int64, error) {
	info, err := client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return 0, err
	}
	for _, rl := range info.RateLimits {
		if rl.RateLimitType == "REQUEST_WEIGHT" && rl.Interval == "MINUTE" {
			return rl.Limit, nil
		}
	}
	return 0, nil
}

// ReportUsedWeight parses the used weight from the HTTP response headers
// and emits a single `used_weight` metric, warning when usage crosses 80%
// of the known limit.
func ReportUsedWeight(log *logger.Log, header http.Header, limit int64) {
	usedStr := header.Get("X-MBX-USED-WEIGHT-1m")
	if usedStr == "" {
		return
	}
	used, err := strconv.ParseInt(usedStr, 10, 64)
	if err != nil {
		return
	}

	l := log.WithComponent("options_gateway")
	l.LogMetric("options_gateway", "used_weight", used, "gauge", nil)

	if limit > 0 && used*5 >= limit*4 {
		l.WithFields(logger.Fields{"used": used, "limit": limit}).Warn("request weight above 80% of limit")
	}
}
