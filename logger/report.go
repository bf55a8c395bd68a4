package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net" //cloudwatch

	"github.com/aws/aws-sdk-go-v2/aws"                              //cloudwatch
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types" //cloudwatch
)

type endpointStat struct {
	requests int64
	bytes    int64
}

var (
	errorsGateway   int64
	errorsOrders    int64
	warnsGateway    int64
	warnsOrders     int64
	chainFetches    int64
	depthFetches    int64
	tickerRefreshes int64
	ordersPlaced    int64
	ordersCancelled int64
	retries         int64
	droppedRecords  int64
	endpoints       sync.Map // map[string]*endpointStat
)

func recordWarn(component string) {
	if strings.Contains(component, "order") {
		atomic.AddInt64(&warnsOrders, 1)
	} else if strings.Contains(component, "gateway") {
		atomic.AddInt64(&warnsGateway, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "order") {
		atomic.AddInt64(&errorsOrders, 1)
	} else if strings.Contains(component, "gateway") {
		atomic.AddInt64(&errorsGateway, 1)
	}
}

// IncrementChainFetch records one options chain fetch and its payload size.
func IncrementChainFetch(size int) {
	atomic.AddInt64(&chainFetches, 1)
	recordEndpoint("options_chain", size)
}

// IncrementDepthFetch records one order book depth fetch.
func IncrementDepthFetch(size int) {
	atomic.AddInt64(&depthFetches, 1)
	recordEndpoint("depth", size)
}

// IncrementTickerRefresh records one bulk ticker pricing refresh.
func IncrementTickerRefresh(size int) {
	atomic.AddInt64(&tickerRefreshes, 1)
	recordEndpoint("ticker", size)
}

// IncrementOrderPlaced records one submitted order.
func IncrementOrderPlaced() {
	atomic.AddInt64(&ordersPlaced, 1)
	recordEndpoint("order_place", 0)
}

// IncrementOrderCancelled records one cancelled order.
func IncrementOrderCancelled() {
	atomic.AddInt64(&ordersCancelled, 1)
	recordEndpoint("order_cancel", 0)
}

// IncrementRetry records one retry attempt across all operations.
func IncrementRetry() {
	atomic.AddInt64(&retries, 1)
}

// IncrementDroppedRecord records one malformed chain record that was
// dropped during normalization.
func IncrementDroppedRecord() {
	atomic.AddInt64(&droppedRecords, 1)
}

func recordEndpoint(name string, size int) {
	v, _ := endpoints.LoadOrStore(name, &endpointStat{})
	es := v.(*endpointStat)
	atomic.AddInt64(&es.requests, 1)
	atomic.AddInt64(&es.bytes, int64(size))
}

// StartReport begins periodic logging of system and request statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	netStats, _ := gnet.IOCounters(false)
	endpointData := map[string]map[string]int64{}
	endpoints.Range(func(k, v any) bool {
		name := k.(string)
		es := v.(*endpointStat)
		endpointData[name] = map[string]int64{
			"requests": atomic.LoadInt64(&es.requests),
			"bytes":    atomic.LoadInt64(&es.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_gateway":   atomic.LoadInt64(&errorsGateway),
		"errors_orders":    atomic.LoadInt64(&errorsOrders),
		"warns_gateway":    atomic.LoadInt64(&warnsGateway),
		"warns_orders":     atomic.LoadInt64(&warnsOrders),
		"chain_fetches":    atomic.LoadInt64(&chainFetches),
		"depth_fetches":    atomic.LoadInt64(&depthFetches),
		"ticker_refreshes": atomic.LoadInt64(&tickerRefreshes),
		"orders_placed":    atomic.LoadInt64(&ordersPlaced),
		"orders_cancelled": atomic.LoadInt64(&ordersCancelled),
		"retries":          atomic.LoadInt64(&retries),
		"dropped_records":  atomic.LoadInt64(&droppedRecords),
		"goroutines":       runtime.NumGoroutine(),
		"cpu_percent":      cpuPct,
		"memory_mb":        int64(memStats.Used) / 1024 / 1024,
		"disk_mb":          int64(diskStats.Used) / 1024 / 1024,
		"endpoints":        endpointData,
		"net_bytes_sent":   int64(bytesSent),
		"net_bytes_recv":   int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("DiskMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(diskStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsGateway"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_gateway"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsOrders"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_orders"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsGateway"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_gateway"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsOrders"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_orders"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ChainFetches"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["chain_fetches"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("DepthFetches"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["depth_fetches"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("TickerRefreshes"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["ticker_refreshes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("OrdersPlaced"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["orders_placed"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("OrdersCancelled"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["orders_cancelled"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Retries"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["retries"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("DroppedRecords"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["dropped_records"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		cwtypes.MetricDatum{MetricName: aws.String("NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	)

	for name, stats := range endpointData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("EndpointRequests"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Endpoint"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["requests"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("EndpointBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Endpoint"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
