package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	xerrors "SplitChain/internal/errors"
	"SplitChain/internal/negotiate"
	"SplitChain/internal/observability/metrics"
	"SplitChain/internal/receipt"
	"SplitChain/internal/settle"
	"SplitChain/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
)

// 上传小票图片的大小上限。
const maxReceiptBytes = 10 << 20

// Server 负责暴露 REST 接口，供前端驱动小票识别、协商与清算。
type Server struct {
	addr         string
	origins      []string
	orchestrator *negotiate.Orchestrator
	executor     *settle.Executor
	extractor    *receipt.Extractor
}

// NewServer 构造 API 服务实例。extractor 可以为空，此时小票识别
// 接口返回 503。
func NewServer(addr string, origins []string, orchestrator *negotiate.Orchestrator, executor *settle.Executor, extractor *receipt.Extractor) *Server {
	return &Server{
		addr:         addr,
		origins:      append([]string(nil), origins...),
		orchestrator: orchestrator,
		executor:     executor,
		extractor:    extractor,
	}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	router := mux.NewRouter()
	router.Handle("/api/v1/receipts", s.instrument("receipts", s.handleReceipt)).Methods(http.MethodPost)
	router.Handle("/api/v1/negotiations", s.instrument("negotiations", s.handleNegotiation)).Methods(http.MethodPost)
	router.Handle("/api/v1/settlements", s.instrument("settlements", s.handleSettlement)).Methods(http.MethodPost)
	router.Handle("/api/v1/payments", s.instrument("payments", s.handlePayment)).Methods(http.MethodPost)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	handler := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(router)

	// 配置 HTTP 服务器。
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 启动服务器并监听关闭信号。
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// handleReceipt 处理小票图片上传，返回识别出的消费行。
func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	if s.extractor == nil {
		http.Error(w, "小票识别能力未初始化", http.StatusServiceUnavailable)
		return
	}

	if err := r.ParseMultipartForm(maxReceiptBytes); err != nil {
		http.Error(w, "表单解析失败", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "缺少 file 字段", http.StatusBadRequest)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxReceiptBytes))
	if err != nil {
		http.Error(w, "读取上传文件失败", http.StatusBadRequest)
		return
	}

	items, raw, err := s.extractor.Extract(r.Context(), image, header.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, struct {
		Items []negotiate.LineItem `json:"items"`
		Raw   string               `json:"raw"`
	}{Items: items, Raw: raw})
}

// negotiationRequest 是发起协商的请求体。stances 按序号覆盖
// 各参与方的默认立场。
type negotiationRequest struct {
	Items   []negotiate.LineItem `json:"items"`
	Tip     decimal.Decimal      `json:"tip"`
	Stances map[int]string       `json:"stances,omitempty"`
}

// handleNegotiation 执行完整协商流程并返回对话记录与清算计划。
func (s *Server) handleNegotiation(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		http.Error(w, "协商能力未初始化", http.StatusServiceUnavailable)
		return
	}

	var req negotiationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}

	result, err := s.orchestrator.Negotiate(r.Context(), req.Items, req.Tip, req.Stances)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

// settlementRequest 是执行清算计划的请求体，键为参与方序号。
type settlementRequest struct {
	Plan map[int]decimal.Decimal `json:"plan"`
}

// handleSettlement 把清算计划落实为链上转账。
func (s *Server) handleSettlement(w http.ResponseWriter, r *http.Request) {
	if s.executor == nil {
		http.Error(w, "清算能力未初始化", http.StatusServiceUnavailable)
		return
	}

	var req settlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	if len(req.Plan) == 0 {
		http.Error(w, "清算计划为空", http.StatusBadRequest)
		return
	}

	batch, err := s.executor.ExecutePlan(r.Context(), negotiate.SettlementPlan(req.Plan))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, batch)
}

// paymentRequest 是直接支付流程的请求体：不经过协商，由调用方
// 直接给出每个人的欠款。people 的顺序决定序号。
type paymentRequest struct {
	Owed   map[string]decimal.Decimal `json:"owed"`
	PaidBy string                     `json:"paid_by"`
	People []string                   `json:"people"`
}

// handlePayment 执行直接支付流程。
func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	if s.executor == nil {
		http.Error(w, "清算能力未初始化", http.StatusServiceUnavailable)
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	if len(req.People) == 0 {
		http.Error(w, "people 不能为空", http.StatusBadRequest)
		return
	}

	batch, err := s.executor.ExecuteDirect(r.Context(), req.Owed, req.PaidBy, req.People)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, batch)
}

// instrument 为处理器接上请求指标采集。
func (s *Server) instrument(name string, handler http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// writeJSON 序列化响应体。
func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L().Warn("响应序列化失败", slog.Any("error", err))
	}
}

// writeError 把内部错误码映射为 HTTP 状态码。
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch xerrors.CodeOf(err) {
	case xerrors.CodeInvalidArgument:
		status = http.StatusBadRequest
	case xerrors.CodeNotFound:
		status = http.StatusNotFound
	case xerrors.CodeTimeout:
		status = http.StatusGatewayTimeout
	case xerrors.CodeCompletionFailure, xerrors.CodePaymentFailure:
		status = http.StatusBadGateway
	case xerrors.CodeInitializationFailure, xerrors.CodeConfiguration:
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
