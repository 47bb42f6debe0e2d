package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"SplitChain/sdk/go/splitchain"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/negotiations", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(splitchain.NegotiationResult{
			Transcript: []splitchain.Turn{
				{Ordinal: 1, Speaker: "Alice", Text: "I only had the coffee."},
				{Ordinal: 2, Speaker: "Bob", Text: "12.50"},
			},
			Plan:  map[int]string{1: "4.00", 2: "12.50"},
			Total: "16.50",
		})
	})
	mux.HandleFunc("/api/v1/settlements", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(splitchain.Batch{
			ID: "batch-demo",
			Transfers: []splitchain.Transfer{
				{Ordinal: 1, From: "Alice", To: "Carol", Amount: "4.00", Status: "success"},
				{Ordinal: 2, From: "Bob", To: "Carol", Amount: "12.50", Status: "success"},
			},
			Succeeded: 2,
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := splitchain.NewClient(srv.URL, srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := client.Negotiate(ctx, splitchain.NegotiationRequest{
		Items: []splitchain.LineItem{
			{Name: "Latte", Quantity: 1, Price: "4.00"},
			{Name: "Pasta", Quantity: 1, Price: "12.50"},
		},
		Tip: "0",
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("negotiated total %s across %d turns\n", result.Total, len(result.Transcript))

	batch, err := client.ExecuteSettlement(ctx, splitchain.SettlementRequest{Plan: result.Plan})
	if err != nil {
		panic(err)
	}
	fmt.Printf("settled batch %s (succeeded=%d failed=%d)\n", batch.ID, batch.Succeeded, batch.Failed)
}
