package collector

import (
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/tomasbasham/devtoolsd/internal/store"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// pendingRequest is the request side of a correlated network event, held
// until the matching response/finished/failed event arrives. Mirrors the
// teacher's capture.go pendingRequest, minus the HAR-specific fields this
// daemon does not need.
type pendingRequest struct {
	method    string
	url       string
	wallTime  time.Time
	startedAt time.Time
}

// NetworkCollector correlates Network.* events by RequestID and appends one
// wire.NetworkEvent per completed (or failed) request.
type NetworkCollector struct {
	wr      store.Store
	pending *boundedLRU

	respMu   sync.Mutex
	response map[network.RequestID]*network.EventResponseReceived
}

func newNetworkCollector(wr store.Store, capacity int) *NetworkCollector {
	return &NetworkCollector{
		wr:       wr,
		pending:  newBoundedLRU(capacity),
		response: make(map[network.RequestID]*network.EventResponseReceived),
	}
}

func (c *NetworkCollector) onRequest(ev *network.EventRequestWillBeSent) {
	evictedKey, _, evicted := c.pending.put(ev.RequestID, pendingRequest{
		method:    ev.Request.Method,
		url:       ev.Request.URL,
		wallTime:  ev.WallTime.Time(),
		startedAt: time.Now(),
	})
	if evicted {
		networkEvicted(c.wr, evictedKey)
	}
}

func (c *NetworkCollector) onResponse(ev *network.EventResponseReceived) {
	c.respMu.Lock()
	c.response[ev.RequestID] = ev
	c.respMu.Unlock()
}

func (c *NetworkCollector) onFinished(ev *network.EventLoadingFinished) {
	c.emit(ev.RequestID, ev.EncodedDataLength, nil)
}

func (c *NetworkCollector) onFailed(ev *network.EventLoadingFailed) {
	c.emit(ev.RequestID, 0, &ev.ErrorText)
}

// emit correlates the request, its response (if one arrived), and the
// terminal finished/failed event into one wire.NetworkEvent and appends it.
// A request with no correlated response (failed before headers arrived) is
// still emitted with a zero status so failed navigations remain visible.
func (c *NetworkCollector) emit(id network.RequestID, encodedSize int64, errText *string) {
	reqAny, ok := c.pending.take(id)
	if !ok {
		return
	}
	req := reqAny.(pendingRequest)

	c.respMu.Lock()
	resp, hasResp := c.response[id]
	delete(c.response, id)
	c.respMu.Unlock()

	ne := wire.NetworkEvent{
		URL:    req.url,
		Method: req.method,
	}

	if hasResp {
		ne.Status = int(resp.Response.Status)
		ne.MimeType = resp.Response.MimeType
		ttfb := resp.Response.Timing
		if ttfb != nil {
			ne.Timing = wire.NetworkTiming{
				DNS:     ttfb.DNSEnd - ttfb.DNSStart,
				Connect: ttfb.ConnectEnd - ttfb.ConnectStart,
				TTFB:    ttfb.ReceiveHeadersEnd,
			}
		}
	}
	ne.Size = encodedSize
	ne.Timing.Total = float64(time.Since(req.startedAt).Milliseconds())
	if errText != nil {
		ne.Initiator = *errText
	}

	c.wr.Append(wire.EventNetwork, ne, time.Now())
}
