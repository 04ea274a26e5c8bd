package replication

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"pos-ledger/internal/store"
	"pos-ledger/internal/util"

	"go.uber.org/zap"
)

// deliveryTimeout bounds one delivery attempt. After it the attempt is
// treated as failed and the payload is spooled.
const deliveryTimeout = 15 * time.Second

const (
	notifyChannel  = "#pos-notifications"
	notifyUsername = "POS System"
)

// ReplicationError means a payload could not be delivered to an
// external collaborator. It never reaches a workflow caller: the
// failure path always routes to the spool.
type ReplicationError struct {
	Sheet string
	Err   error
}

func (e *ReplicationError) Error() string {
	return fmt.Sprintf("replication to %s failed: %v", e.Sheet, e.Err)
}

func (e *ReplicationError) Unwrap() error { return e.Err }

// appendRequest is the envelope the sheet mirror accepts.
type appendRequest struct {
	Action    string      `json:"action"`
	SheetName string      `json:"sheetName"`
	Data      interface{} `json:"data"`
}

type mirrorResponse struct {
	Success   bool   `json:"success"`
	SheetName string `json:"sheetName"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error"`
}

type notifyRequest struct {
	Text     string `json:"text"`
	Channel  string `json:"channel"`
	Username string `json:"username"`
}

// Dispatcher pushes committed entity mutations to the sheet mirror and
// the notification webhook. Delivery is best effort and non-blocking:
// a failed mirror push is spooled, a failed notification is logged,
// and neither ever fails the local operation that triggered it.
type Dispatcher struct {
	mirrorURL  string
	webhookURL string
	client     *http.Client
	spool      store.SpoolStore
	logger     *zap.Logger
	inflight   sync.WaitGroup
}

// NewDispatcher creates a dispatcher. An empty mirrorURL degrades
// mirroring to spool-only; an empty webhookURL disables notifications.
func NewDispatcher(mirrorURL, webhookURL string, spool store.SpoolStore) *Dispatcher {
	return &Dispatcher{
		mirrorURL:  mirrorURL,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: deliveryTimeout},
		spool:      spool,
		logger:     util.GetLogger(),
	}
}

// Mirror pushes a row to the sheet mirror asynchronously. The caller's
// local commit has already happened; this never reports back to it.
func (d *Dispatcher) Mirror(row SheetRow) {
	payload, err := json.Marshal(row)
	if err != nil {
		d.logger.Error("Failed to encode sheet row", zap.String("sheet", row.SheetName()), zap.Error(err))
		return
	}

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()

		if err := d.Deliver(ctx, row.SheetName(), payload); err != nil {
			d.logger.Warn("Mirror delivery failed, spooling",
				zap.String("sheet", row.SheetName()),
				zap.Error(err))
			d.spoolPayload(row.SheetName(), payload, err)
		}
	}()
}

// Deliver makes one synchronous delivery attempt for a row payload.
// The retry worker uses it directly when draining the spool.
func (d *Dispatcher) Deliver(ctx context.Context, sheetName string, payload json.RawMessage) error {
	if d.mirrorURL == "" {
		return &ReplicationError{Sheet: sheetName, Err: fmt.Errorf("mirror endpoint not configured")}
	}

	start := time.Now()
	defer func() {
		util.ReplicationDeliveryLatency.Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(appendRequest{
		Action:    "appendData",
		SheetName: sheetName,
		Data:      payload,
	})
	if err != nil {
		return &ReplicationError{Sheet: sheetName, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.mirrorURL, bytes.NewReader(body))
	if err != nil {
		return &ReplicationError{Sheet: sheetName, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return &ReplicationError{Sheet: sheetName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ReplicationError{Sheet: sheetName, Err: fmt.Errorf("mirror returned status %d", resp.StatusCode)}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ReplicationError{Sheet: sheetName, Err: fmt.Errorf("failed to read mirror response: %w", err)}
	}

	var mr mirrorResponse
	if err := json.Unmarshal(respBody, &mr); err != nil {
		return &ReplicationError{Sheet: sheetName, Err: fmt.Errorf("malformed mirror response: %w", err)}
	}
	if !mr.Success {
		return &ReplicationError{Sheet: sheetName, Err: fmt.Errorf("mirror rejected row: %s", mr.Error)}
	}

	util.ReplicationDeliveredTotal.WithLabelValues(sheetName).Inc()
	return nil
}

// spoolPayload queues a failed payload for the retry sweep. Spooling
// is itself best effort: if even the spool write fails the payload is
// logged and dropped.
func (d *Dispatcher) spoolPayload(sheetName string, payload json.RawMessage, cause error) {
	entry := &store.SpoolEntry{
		SheetName: sheetName,
		Payload:   payload,
		LastError: cause.Error(),
		Attempts:  1,
		CreatedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.spool.Enqueue(ctx, entry); err != nil {
		d.logger.Error("Failed to spool replication payload, dropping",
			zap.String("sheet", sheetName),
			zap.Error(err))
		return
	}
	util.ReplicationSpooledTotal.WithLabelValues(sheetName).Inc()
}

// Flush waits for all in-flight deliveries and notifications. Main
// calls it during graceful shutdown so committed mutations reach the
// spool before the process exits.
func (d *Dispatcher) Flush() {
	d.inflight.Wait()
}

// Notify sends a one-line workflow event message to the webhook
// asynchronously. Failures are logged and never block the caller.
func (d *Dispatcher) Notify(message string) {
	if d.webhookURL == "" {
		d.logger.Debug("Notification webhook not configured", zap.String("message", message))
		return
	}

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()

		if err := d.sendNotification(message); err != nil {
			util.NotificationsFailedTotal.Inc()
			d.logger.Warn("Notification delivery failed", zap.String("message", message), zap.Error(err))
		}
	}()
}

func (d *Dispatcher) sendNotification(message string) error {
	body, err := json.Marshal(notifyRequest{
		Text:     "[POS] " + message,
		Channel:  notifyChannel,
		Username: notifyUsername,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
