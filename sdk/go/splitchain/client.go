package splitchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. Negotiation calls chain several model completions, so
// it is longer than a typical REST timeout.
const DefaultHTTPTimeout = 120 * time.Second

// Client wraps the HTTP interactions with the SplitChain REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// LineItem is a single line on the bill. Price is the total for the line,
// transported as a decimal string.
type LineItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

// ReceiptResult contains the items recognised from an uploaded receipt image
// together with the raw model reply for troubleshooting.
type ReceiptResult struct {
	Items []LineItem `json:"items"`
	Raw   string     `json:"raw"`
}

// NegotiationRequest is the payload required to start a negotiation.
// Stances override the configured default stance per party ordinal.
type NegotiationRequest struct {
	Items   []LineItem     `json:"items"`
	Tip     string         `json:"tip"`
	Stances map[int]string `json:"stances,omitempty"`
}

// Turn is one utterance in the negotiation transcript.
type Turn struct {
	Ordinal int    `json:"ordinal"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Commitment is a party's final committed amount after correction.
type Commitment struct {
	Ordinal   int    `json:"ordinal"`
	Raw       string `json:"raw"`
	Extracted string `json:"extracted"`
	Corrected string `json:"corrected"`
	Status    string `json:"status"`
}

// NegotiationResult is the full outcome of a negotiation run.
type NegotiationResult struct {
	Transcript  []Turn         `json:"transcript"`
	Commitments []Commitment   `json:"commitments"`
	Plan        map[int]string `json:"settlement_plan"`
	Total       string         `json:"total"`
}

// SettlementRequest carries the plan to execute, keyed by party ordinal.
type SettlementRequest struct {
	Plan map[int]string `json:"plan"`
}

// PaymentRequest is the direct payment flow: the caller supplies what each
// person owes without running a negotiation first.
type PaymentRequest struct {
	Owed   map[string]string `json:"owed"`
	PaidBy string            `json:"paid_by"`
	People []string          `json:"people"`
}

// TransferReceipt is the on-chain receipt for a completed transfer.
type TransferReceipt struct {
	TxHash string `json:"tx_hash"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Memo   string `json:"memo"`
}

// Transfer records one transfer attempt from a party to the payer.
type Transfer struct {
	ID          string           `json:"id"`
	Ordinal     int              `json:"ordinal"`
	From        string           `json:"from"`
	FromAddress string           `json:"from_address,omitempty"`
	To          string           `json:"to"`
	ToAddress   string           `json:"to_address"`
	Amount      string           `json:"amount"`
	Status      string           `json:"status"`
	Receipt     *TransferReceipt `json:"receipt,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Batch is the ordered result of executing a settlement plan.
type Batch struct {
	ID        string     `json:"id"`
	Transfers []Transfer `json:"transfers"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("splitchain api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the SplitChain API. When httpClient is
// nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) *Client {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		panic(fmt.Sprintf("invalid base url: %v", err))
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}
}

// ExtractReceipt uploads a receipt image and returns the recognised items.
func (c *Client) ExtractReceipt(ctx context.Context, filename, contentType string, image io.Reader) (ReceiptResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return ReceiptResult{}, fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return ReceiptResult{}, fmt.Errorf("copy image payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return ReceiptResult{}, fmt.Errorf("finalise multipart form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/receipts", &body)
	if err != nil {
		return ReceiptResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result ReceiptResult
	if err := c.do(req, &result); err != nil {
		return ReceiptResult{}, err
	}
	return result, nil
}

// Negotiate runs the full negotiation flow and returns the transcript and
// settlement plan.
func (c *Client) Negotiate(ctx context.Context, request NegotiationRequest) (NegotiationResult, error) {
	var result NegotiationResult
	if err := c.post(ctx, "/api/v1/negotiations", request, &result); err != nil {
		return NegotiationResult{}, err
	}
	return result, nil
}

// ExecuteSettlement submits a settlement plan for on-chain execution.
func (c *Client) ExecuteSettlement(ctx context.Context, request SettlementRequest) (Batch, error) {
	var batch Batch
	if err := c.post(ctx, "/api/v1/settlements", request, &batch); err != nil {
		return Batch{}, err
	}
	return batch, nil
}

// DirectPayment executes transfers from a caller-supplied owed map without
// running a negotiation.
func (c *Client) DirectPayment(ctx context.Context, request PaymentRequest) (Batch, error) {
	var batch Batch
	if err := c.post(ctx, "/api/v1/payments", request, &batch); err != nil {
		return Batch{}, err
	}
	return batch, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(bytes.TrimSpace(data)),
		}
	}

	if out == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
