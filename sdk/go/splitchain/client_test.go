package splitchain

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNegotiate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/negotiations" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req NegotiationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Items) != 1 || req.Items[0].Name != "Latte" {
			t.Fatalf("unexpected payload: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(NegotiationResult{
			Plan:  map[int]string{1: "4.00"},
			Total: "4.00",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	result, err := client.Negotiate(context.Background(), NegotiationRequest{
		Items: []LineItem{{Name: "Latte", Quantity: 1, Price: "4.00"}},
		Tip:   "0",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != "4.00" || result.Plan[1] != "4.00" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestExecuteSettlement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/settlements" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(Batch{ID: "batch-1", Succeeded: 1})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	batch, err := client.ExecuteSettlement(context.Background(), SettlementRequest{Plan: map[int]string{1: "4.00"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.ID != "batch-1" || batch.Succeeded != 1 {
		t.Fatalf("unexpected batch: %+v", batch)
	}
}

func TestExtractReceiptMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "fake image bytes" {
			t.Fatalf("unexpected upload body: %q", data)
		}
		_ = json.NewEncoder(w).Encode(ReceiptResult{
			Items: []LineItem{{Name: "Latte", Quantity: 1, Price: "4.00"}},
			Raw:   "Latte,1,4.00",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	result, err := client.ExtractReceipt(context.Background(), "receipt.jpg", "image/jpeg", strings.NewReader("fake image bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].Price != "4.00" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestAPIErrorSurface(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "清算计划为空", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	_, err := client.ExecuteSettlement(context.Background(), SettlementRequest{})
	if err == nil {
		t.Fatalf("expected api error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", apiErr.StatusCode)
	}
}
