package replication

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pos-ledger/internal/models"
	"pos-ledger/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mirrorServer(t *testing.T, handler func(w http.ResponseWriter, req appendRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req appendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler(w, req)
	}))
}

func TestDeliverSuccess(t *testing.T) {
	received := make(chan appendRequest, 1)
	srv := mirrorServer(t, func(w http.ResponseWriter, req appendRequest) {
		received <- req
		json.NewEncoder(w).Encode(mirrorResponse{Success: true, SheetName: req.SheetName})
	})
	defer srv.Close()

	mem := store.NewMemory()
	d := NewDispatcher(srv.URL, "", mem)

	row := SaleRow{ID: "s1", Subtotal: 2000, Tax: 200, Total: 2200}
	payload, err := json.Marshal(row)
	require.NoError(t, err)

	err = d.Deliver(context.Background(), row.SheetName(), payload)
	require.NoError(t, err)

	got := <-received
	assert.Equal(t, "appendData", got.Action)
	assert.Equal(t, SheetSales, got.SheetName)

	// Nothing spooled on success.
	entries, err := mem.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeliverFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler func(w http.ResponseWriter, req appendRequest)
	}{
		{"non-2xx status", func(w http.ResponseWriter, req appendRequest) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"success false", func(w http.ResponseWriter, req appendRequest) {
			json.NewEncoder(w).Encode(mirrorResponse{Success: false, Error: "quota exceeded"})
		}},
		{"malformed body", func(w http.ResponseWriter, req appendRequest) {
			w.Write([]byte("not json"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := mirrorServer(t, tt.handler)
			defer srv.Close()

			d := NewDispatcher(srv.URL, "", store.NewMemory())
			err := d.Deliver(context.Background(), SheetSales, json.RawMessage(`{}`))

			var repErr *ReplicationError
			require.ErrorAs(t, err, &repErr)
			assert.Equal(t, SheetSales, repErr.Sheet)
		})
	}
}

func TestDeliverWithoutMirrorConfigured(t *testing.T) {
	d := NewDispatcher("", "", store.NewMemory())
	err := d.Deliver(context.Background(), SheetCustomers, json.RawMessage(`{}`))

	var repErr *ReplicationError
	require.ErrorAs(t, err, &repErr)
}

func TestMirrorSpoolsOnFailure(t *testing.T) {
	srv := mirrorServer(t, func(w http.ResponseWriter, req appendRequest) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	mem := store.NewMemory()
	d := NewDispatcher(srv.URL, "", mem)

	d.Mirror(CustomerRow{ID: "c1", Name: "Taro", Phone: "080-1111-2222"})
	d.Flush()

	entries, err := mem.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, SheetCustomers, entries[0].SheetName)
	assert.Equal(t, 1, entries[0].Attempts)
	assert.NotEmpty(t, entries[0].LastError)

	var row CustomerRow
	require.NoError(t, json.Unmarshal(entries[0].Payload, &row))
	assert.Equal(t, "c1", row.ID)
}

func TestMirrorDoesNotSpoolOnSuccess(t *testing.T) {
	srv := mirrorServer(t, func(w http.ResponseWriter, req appendRequest) {
		json.NewEncoder(w).Encode(mirrorResponse{Success: true})
	})
	defer srv.Close()

	mem := store.NewMemory()
	d := NewDispatcher(srv.URL, "", mem)

	d.Mirror(CustomerRow{ID: "c1"})
	d.Flush()

	entries, err := mem.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNotifyPostsWebhookMessage(t *testing.T) {
	received := make(chan notifyRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req notifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		received <- req
	}))
	defer srv.Close()

	d := NewDispatcher("", srv.URL, store.NewMemory())
	d.Notify("売上登録 - 合計: ¥2200 (cash) - 商品数: 1")
	d.Flush()

	got := <-received
	assert.Equal(t, "[POS] 売上登録 - 合計: ¥2200 (cash) - 商品数: 1", got.Text)
	assert.Equal(t, notifyChannel, got.Channel)
	assert.Equal(t, notifyUsername, got.Username)
}

func TestNotifyFailureNeverSpools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	mem := store.NewMemory()
	d := NewDispatcher("", srv.URL, mem)
	d.Notify("whatever")
	d.Flush()

	entries, err := mem.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRowSheetNames(t *testing.T) {
	assert.Equal(t, "査定データ", AssessmentRow{}.SheetName())
	assert.Equal(t, "買取履歴", PurchaseRow{}.SheetName())
	assert.Equal(t, "販売履歴", SaleRow{}.SheetName())
	assert.Equal(t, "顧客情報", CustomerRow{}.SheetName())
	assert.Equal(t, "在庫管理", ProductRow{}.SheetName())
	assert.Equal(t, "日次レポート", DailyReportRow{}.SheetName())
}

func TestNewSaleRow(t *testing.T) {
	sale := &models.Sale{
		ID:            "s1",
		CustomerName:  "Taro",
		CustomerPhone: "080-1111-2222",
		Items: []models.SaleItem{
			{Name: "Switch", SalePrice: 1000, Quantity: 2},
		},
		Subtotal:      2000,
		Tax:           200,
		Total:         2200,
		PaymentMethod: "cash",
	}

	row := NewSaleRow(sale)
	assert.Equal(t, "s1", row.ID)
	assert.Equal(t, 1, row.ItemCount)
	assert.Equal(t, int64(2000), row.Subtotal)
	assert.Equal(t, int64(200), row.Tax)
	assert.Equal(t, int64(2200), row.Total)
	assert.Contains(t, row.ItemDetails, "Switch x2")

	// Field names are the mirror's fixed column contract.
	data, err := json.Marshal(row)
	require.NoError(t, err)
	var keys map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &keys))
	for _, key := range []string{"timestamp", "id", "customerName", "customerPhone",
		"itemCount", "subtotal", "tax", "total", "paymentMethod", "itemDetails"} {
		assert.Contains(t, keys, key)
	}
}
