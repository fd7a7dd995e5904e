package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"chainquery/internal/core"
	"chainquery/internal/http/handler/middleware"
	"chainquery/internal/http/payload"
	tokenIssuer "chainquery/pkg/jwt"

	"go.uber.org/zap"
)

var (
	Authenticate             = "POST /api/authenticate"
	GetTransaction           = "GET /api/{chain}/{network}/tx/{txid}"
	StreamTransactions       = "GET /api/{chain}/{network}/tx"
	GetChainInfo             = "GET /api/{chain}/{network}/info"
	BroadcastTransaction     = "POST /api/{chain}/{network}/tx/send"
	ListBlocks               = "GET /api/{chain}/{network}/block"
	GetBalance               = "GET /api/{chain}/{network}/address/{address}/balance"
	EstimateFee              = "GET /api/{chain}/{network}/fee/{target}"
	EstimateGas              = "POST /api/{chain}/{network}/gas"
	RegisterWallet           = "POST /api/{chain}/{network}/wallet"
	GetWalletBalance         = "GET /api/{chain}/{network}/wallet/{walletId}/balance"
	StreamWalletTransactions = "GET /api/{chain}/{network}/wallet/{walletId}/tx"
)

type QueryHandler struct {
	logs             *zap.SugaredLogger
	requestValidator RequestValidator
	engine           QueryService
}

func NewQueryHandler(logger *zap.SugaredLogger, requestValidator RequestValidator, engine QueryService) *QueryHandler {
	return &QueryHandler{
		logs:             logger,
		requestValidator: requestValidator,
		engine:           engine,
	}
}

func (h *QueryHandler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	requestId := requestID(r)

	var authReq payload.AuthRequest
	err := h.requestValidator.DecodeAndValidateJSONPayload(r, &authReq)
	if err != nil {
		h.respond(w, Response{
			Message: "Could not authenticate",
			Error:   fmt.Errorf("invalid request payload: %w", err).Error(),
		}, http.StatusBadRequest, requestId)
		h.logs.Errorw("failed to decode and validate request payload",
			"error", err,
			"handler", Authenticate,
			"request_id", requestId)
		return
	}

	token, err := h.engine.Authenticate(r.Context(), authReq.ToCoreMessage())
	if err != nil {
		resp := Response{Message: "Login failed"}
		httpCode := http.StatusInternalServerError
		if errors.Is(err, core.ErrUserNotFound) || errors.Is(err, core.ErrIncorrectPassword) {
			httpCode = http.StatusUnauthorized
			resp.Error = err.Error()
		} else {
			resp.Error = "unexpected error occurred"
		}

		h.respond(w, resp, httpCode, requestId)
		h.logs.Errorw("authentication failed",
			"error", err,
			"handler", Authenticate,
			"request_id", requestId)
		return
	}

	h.respond(w, map[string]string{"token": token}, http.StatusOK, requestId)
}

func (h *QueryHandler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	requestId := requestID(r)

	tx, err := h.engine.GetTransaction(r.Context(), r.PathValue("chain"), r.PathValue("network"), r.PathValue("txid"))
	if err != nil {
		h.respond(w, Response{
			Message: "Could not retrieve transaction",
			Error:   fmt.Errorf("get transaction: %w", err).Error(),
		}, http.StatusInternalServerError, requestId)
		h.logs.Errorw("failed to get transaction",
			"error", err,
			"handler", GetTransaction,
			"request_id", requestId)
		return
	}

	// absent transaction is an explicit empty result, not an error
	h.respond(w, map[string]*core.TransformedTx{"transaction": tx}, http.StatusOK, requestId)
}

func (h *QueryHandler) HandleGetChainInfo(w http.ResponseWriter, r *http.Request) {
	requestId := requestID(r)

	info, err := h.engine.GetChainInfo(r.Context(), r.PathValue("chain"), r.PathValue("network"))
	if err != nil {
		h.respond(w, Response{
			Message: "Could not retrieve chain info",
			Error:   fmt.Errorf("get chain info: %w", err).Error(),
		}, http.StatusInternalServerError, requestId)
		h.logs.Errorw("failed to get chain info",
			"error", err,
			"handler", GetChainInfo,
			"request_id", requestId)
		return
	}

	h.respond(w, info, http.StatusOK, requestId)
}

func (h *QueryHandler) HandleStreamTransactions(w http.ResponseWriter, r *http.Request) {
	args := core.TxStreamArgs{
		Chain:        r.PathValue("chain"),
		Network:      r.PathValue("network"),
		Address:      r.URL.Query().Get("address"),
		BlockHash:    r.URL.Query().Get("blockHash"),
		TokenAddress: r.URL.Query().Get("token"),
	}
	if raw := r.URL.Query().Get("blockHeight"); raw != "" {
		height, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.respond(w, Response{
				Message: "Request failed",
				Error:   fmt.Errorf("parse blockHeight: %w", err).Error(),
			}, http.StatusBadRequest, requestID(r))
			return
		}
		args.BlockHeight = height
	}
	args.Limit = parseLimit(r)

	h.streamTransactions(w, r, args)
}

func (h *QueryHandler) HandleStreamWalletTransactions(w http.ResponseWriter, r *http.Request) {
	args := core.TxStreamArgs{
		Chain:        r.PathValue("chain"),
		Network:      r.PathValue("network"),
		WalletID:     r.PathValue("walletId"),
		TokenAddress: r.URL.Query().Get("token"),
		Limit:        parseLimit(r),
	}

	if args.WalletID == "" {
		h.respond(w, Response{
			Message: "Request failed",
			Error:   "wallet id is required",
		}, http.StatusBadRequest, requestID(r))
		return
	}

	h.streamTransactions(w, r, args)
}

// streamTransactions writes shaped records as a JSON array incrementally, so
// a disconnecting client cancels the pipeline through the request context.
func (h *QueryHandler) streamTransactions(w http.ResponseWriter, r *http.Request, args core.TxStreamArgs) {
	requestId := requestID(r)

	stream, err := h.engine.StreamTransactions(r.Context(), args)
	if err != nil {
		h.respond(w, Response{
			Message: "Could not retrieve transactions",
			Error:   fmt.Errorf("open transaction stream: %w", err).Error(),
		}, http.StatusInternalServerError, requestId)
		h.logs.Errorw("failed to open transaction stream",
			"error", err,
			"handler", StreamTransactions,
			"request_id", requestId)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	flusher, _ := w.(http.Flusher)

	w.Write([]byte("["))
	encoder := json.NewEncoder(w)
	first := true
	for res := range stream {
		if res.Err != nil {
			h.logs.Errorw("transaction stream aborted",
				"error", res.Err,
				"handler", StreamTransactions,
				"request_id", requestId)
			// the status line is already on the wire; drop the connection so
			// the truncated array cannot pass for a complete result
			panic(http.ErrAbortHandler)
		}
		if !first {
			w.Write([]byte(","))
		}
		first = false
		if err := encoder.Encode(res.Tx); err != nil {
			h.logs.Errorw("failed to encode streamed transaction",
				"error", err,
				"request_id", requestId)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	w.Write([]byte("]"))
}

func (h *QueryHandler) HandleListBlocks(w http.ResponseWriter, r *http.Request) {
	requestId := requestID(r)

	var sinceHeight int64
	if raw := r.URL.Query().Get("sinceHeight"); raw != "" {
		height, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.respond(w, Response{
				Message: "Request failed",
				Error:   fmt.Errorf("parse sinceHeight: %w", err).Error(),
			}, http.StatusBadRequest, requestId)
			return
		}
		sinceHeight = height
	}

	blocks, err := h.engine.ListBlocks(r.Context(), r.PathValue("chain"), r.PathValue("network"), sinceHeight, parseLimit(r))
	if err != nil {
		h.respond(w, Response{
			Message: "Could not retrieve blocks",
			Error:   fmt.Errorf("list blocks: %w", err).Error(),
		}, http.StatusInternalServerError, requestId)
		h.logs.Errorw("failed to list blocks",
			"error", err,
			"handler", ListBlocks,
			"request_id", requestId)
		return
	}

	h.respond(w, map[string][]core.BlockResult{"blocks": blocks}, http.StatusOK, requestId)
}

func (h *QueryHandler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	requestId := requestID(r)

	address := r.PathValue("address")
	if !payload.IsAddress(address) {
		h.respond(w, Response{
			Message: "Request failed",
			Error:   "malformed address parameter",
		}, http.StatusBadRequest, requestId)
		return
	}

	balance, err := h.engine.GetBalance(r.Context(),
		r.PathValue("chain"),
		r.PathValue("network"),
		address,
		r.URL.Query().Get("token"))
	if err != nil {
		h.respond(w, Response{
			Message: "Could not retrieve balance",
			Error:   fmt.Errorf("get balance: %w", err).Error(),
		}, http.StatusInternalServerError, requestId)
		h.logs.Errorw("failed to get balance",
			"error", err,
			"handler", GetBalance,
			"request_id", requestId)
		return
	}

	h.respond(w, balance, http.StatusOK, requestId)
}

func (h *QueryHandler) HandleEstimateFee(w http.ResponseWriter, r *http.Request) {
	requestId := requestID(r)

	target, err := strconv.Atoi(r.PathValue("target"))
	if err != nil {
		h.respond(w, Response{
			Message: "Request failed",
			Error:   fmt.Errorf("parse target parameter: %w", err).Error(),
		}, http.StatusBadRequest, requestId)
		return
	}

	estimate, err := h.engine.EstimateFee(r.Context(), r.PathValue("chain"), r.PathValue("network"), target)
	if err != nil {
		h.respond(w, Response{
			Message: "Could not estimate fee",
			Error:   fmt.Errorf("estimate fee: %w", err).Error(),
		}, http.StatusInternalServerError, requestId)
		h.logs.Errorw("failed to estimate fee",
			"error", err,
			"handler", EstimateFee,
			"request_id", requestId)
		return
	}

	h.respond(w, estimate, http.StatusOK, requestId)
}

func (h *QueryHandler) HandleRegisterWallet(w http.ResponseWriter, r *http.Request) {
	requestId := requestID(r)

	authToken := r.Header.Get("AUTH_TOKEN")
	if authToken == "" {
		h.respond(w, Response{
			Message: "Authentication failed",
			Error:   "AUTH_TOKEN header is required",
		}, http.StatusUnauthorized, requestId)
		return
	}

	var walletReq payload.RegisterWalletRequest
	if err := h.requestValidator.DecodeAndValidateJSONPayload(r, &walletReq); err != nil {
		h.respond(w, Response{
			Message: "Could not register wallet",
			Error:   fmt.Errorf("invalid request payload: %w", err).Error(),
		}, http.StatusBadRequest, requestId)
		h.logs.Errorw("failed to decode and validate request payload",
			"error", err,
			"handler", RegisterWallet,
			"request_id", requestId)
		return
	}

	walletID, err := h.engine.RegisterWallet(r.Context(),
		authToken,
		r.PathValue("chain"),
		r.PathValue("network"),
		walletReq.Name,
		walletReq.Addresses)
	if err != nil {
		resp := Response{Message: "Could not register wallet"}
		httpCode := http.StatusInternalServerError
		if errors.Is(err, tokenIssuer.ErrTokenNotValid) || errors.Is(err, tokenIssuer.ErrTokenExpired) {
			httpCode = http.StatusUnauthorized
			resp.Error = "invalid auth token"
		} else {
			resp.Error = "unexpected error occurred"
		}

		h.respond(w, resp, httpCode, requestId)
		h.logs.Errorw("failed to register wallet",
			"error", err,
			"handler", RegisterWallet,
			"request_id", requestId)
		return
	}

	h.respond(w, map[string]string{"walletId": walletID}, http.StatusOK, requestId)
}

func (h *QueryHandler) HandleGetWalletBalance(w http.ResponseWriter, r *http.Request) {
	requestId := requestID(r)

	balance, err := h.engine.GetWalletBalance(r.Context(),
		r.PathValue("walletId"),
		r.PathValue("chain"),
		r.PathValue("network"))
	if err != nil {
		resp := Response{Message: "Could not retrieve wallet balance"}
		httpCode := http.StatusInternalServerError
		if errors.Is(err, core.ErrMissingWalletID) {
			httpCode = http.StatusBadRequest
		}
		resp.Error = fmt.Errorf("get wallet balance: %w", err).Error()

		h.respond(w, resp, httpCode, requestId)
		h.logs.Errorw("failed to get wallet balance",
			"error", err,
			"handler", GetWalletBalance,
			"request_id", requestId)
		return
	}

	h.respond(w, balance, http.StatusOK, requestId)
}

func (h *QueryHandler) HandleBroadcastTransaction(w http.ResponseWriter, r *http.Request) {
	requestId := requestID(r)

	var broadcastReq payload.BroadcastRequest
	if err := h.requestValidator.DecodeAndValidateJSONPayload(r, &broadcastReq); err != nil {
		h.respond(w, Response{
			Message: "Could not broadcast transaction",
			Error:   fmt.Errorf("invalid request payload: %w", err).Error(),
		}, http.StatusBadRequest, requestId)
		return
	}

	txids, err := h.engine.Broadcast(r.Context(),
		r.PathValue("chain"),
		r.PathValue("network"),
		broadcastReq.Transactions())
	if err != nil {
		// node rejections surface verbatim
		h.respond(w, Response{
			Message: "Broadcast failed",
			Error:   err.Error(),
		}, http.StatusInternalServerError, requestId)
		h.logs.Errorw("failed to broadcast transaction",
			"error", err,
			"handler", BroadcastTransaction,
			"request_id", requestId)
		return
	}

	if broadcastReq.RawTx != "" {
		h.respond(w, map[string]string{"txid": txids[0]}, http.StatusOK, requestId)
		return
	}
	h.respond(w, map[string][]string{"txids": txids}, http.StatusOK, requestId)
}

func (h *QueryHandler) HandleEstimateGas(w http.ResponseWriter, r *http.Request) {
	requestId := requestID(r)

	var gasReq payload.EstimateGasRequest
	if err := h.requestValidator.DecodeAndValidateJSONPayload(r, &gasReq); err != nil {
		h.respond(w, Response{
			Message: "Could not estimate gas",
			Error:   fmt.Errorf("invalid request payload: %w", err).Error(),
		}, http.StatusBadRequest, requestId)
		return
	}

	gas, err := h.engine.EstimateGas(r.Context(), r.PathValue("chain"), r.PathValue("network"), gasReq.ToCoreMessage())
	if err != nil {
		h.respond(w, Response{
			Message: "Could not estimate gas",
			Error:   err.Error(),
		}, http.StatusInternalServerError, requestId)
		h.logs.Errorw("failed to estimate gas",
			"error", err,
			"handler", EstimateGas,
			"request_id", requestId)
		return
	}

	h.respond(w, map[string]uint64{"gasLimit": gas}, http.StatusOK, requestId)
}

func (h *QueryHandler) respond(w http.ResponseWriter, resp any, code int, requestId string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, oopsErr, http.StatusInternalServerError)
		h.logs.Errorw("failed to encode response",
			"error", err,
			"request_id", requestId)
	}
}

func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(middleware.RequestIDKey).(string); ok {
		return id
	}
	return ""
}

func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
