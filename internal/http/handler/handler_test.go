package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"

	"chainquery/internal/core"
	"chainquery/internal/http/handler"
	"chainquery/internal/http/payload"
	tokenIssuer "chainquery/pkg/jwt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

const validAddress = "0x1111111111111111111111111111111111111111"

var _ = Describe("QueryHandler", func() {
	var (
		engine *fakeEngine
		mux    *http.ServeMux
	)

	BeforeEach(func() {
		engine = &fakeEngine{}
		h := handler.NewQueryHandler(zap.NewNop().Sugar(), payload.DecodeValidator{}, engine)

		mux = http.NewServeMux()
		mux.HandleFunc(handler.Authenticate, h.HandleAuthenticate)
		mux.HandleFunc(handler.GetTransaction, h.HandleGetTransaction)
		mux.HandleFunc(handler.StreamTransactions, h.HandleStreamTransactions)
		mux.HandleFunc(handler.GetChainInfo, h.HandleGetChainInfo)
		mux.HandleFunc(handler.BroadcastTransaction, h.HandleBroadcastTransaction)
		mux.HandleFunc(handler.ListBlocks, h.HandleListBlocks)
		mux.HandleFunc(handler.GetBalance, h.HandleGetBalance)
		mux.HandleFunc(handler.EstimateFee, h.HandleEstimateFee)
		mux.HandleFunc(handler.EstimateGas, h.HandleEstimateGas)
		mux.HandleFunc(handler.RegisterWallet, h.HandleRegisterWallet)
		mux.HandleFunc(handler.GetWalletBalance, h.HandleGetWalletBalance)
		mux.HandleFunc(handler.StreamWalletTransactions, h.HandleStreamWalletTransactions)
	})

	do := func(method, target, body string, header map[string]string) *httptest.ResponseRecorder {
		var reader *strings.Reader
		if body == "" {
			reader = strings.NewReader("")
		} else {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, reader)
		for k, v := range header {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	Describe("authentication", func() {
		It("should return a token for valid credentials", func() {
			engine.AuthenticateFn = func(ctx context.Context, msg core.AuthMessage) (string, error) {
				Expect(msg.Username).To(Equal("alice"))
				return "signed-token", nil
			}

			rec := do(http.MethodPost, "/api/authenticate", `{"username":"alice","password":"secret"}`, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp map[string]string
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["token"]).To(Equal("signed-token"))
		})

		It("should reject bad credentials with 401", func() {
			engine.AuthenticateFn = func(ctx context.Context, msg core.AuthMessage) (string, error) {
				return "", core.ErrIncorrectPassword
			}

			rec := do(http.MethodPost, "/api/authenticate", `{"username":"alice","password":"wrong"}`, nil)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("should reject a payload missing required fields with 400", func() {
			rec := do(http.MethodPost, "/api/authenticate", `{"username":"alice"}`, nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("transaction by id", func() {
		It("should return the shaped transaction", func() {
			engine.GetTransactionFn = func(ctx context.Context, chain, network, txid string) (*core.TransformedTx, error) {
				Expect(chain).To(Equal("ETH"))
				Expect(network).To(Equal("mainnet"))
				Expect(txid).To(Equal("0xt1"))
				return &core.TransformedTx{TxID: txid, Confirmations: 6}, nil
			}

			rec := do(http.MethodGet, "/api/ETH/mainnet/tx/0xt1", "", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp struct {
				Transaction *core.TransformedTx `json:"transaction"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Transaction.TxID).To(Equal("0xt1"))
			Expect(resp.Transaction.Confirmations).To(Equal(int64(6)))
		})

		It("should report an absent transaction as an explicit null", func() {
			rec := do(http.MethodGet, "/api/ETH/mainnet/tx/0xmissing", "", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"transaction":null`))
		})
	})

	Describe("transaction streaming", func() {
		It("should write shaped records as a JSON array", func() {
			engine.StreamTransactionsFn = func(ctx context.Context, args core.TxStreamArgs) (<-chan core.StreamResult, error) {
				Expect(args.Chain).To(Equal("ETH"))
				Expect(args.Address).To(Equal(validAddress))
				Expect(args.Limit).To(Equal(2))

				out := make(chan core.StreamResult, 2)
				out <- core.StreamResult{Tx: &core.TransformedTx{TxID: "0xt1"}}
				out <- core.StreamResult{Tx: &core.TransformedTx{TxID: "0xt2"}}
				close(out)
				return out, nil
			}

			rec := do(http.MethodGet, "/api/ETH/mainnet/tx?address="+validAddress+"&limit=2", "", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var txs []core.TransformedTx
			Expect(json.Unmarshal(rec.Body.Bytes(), &txs)).To(Succeed())
			Expect(txs).To(HaveLen(2))
			Expect(txs[0].TxID).To(Equal("0xt1"))
			Expect(txs[1].TxID).To(Equal("0xt2"))
		})

		It("should reject a non-numeric blockHeight", func() {
			rec := do(http.MethodGet, "/api/ETH/mainnet/tx?blockHeight=abc", "", nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should drop the connection when the stream fails mid-flight", func() {
			engine.StreamTransactionsFn = func(ctx context.Context, args core.TxStreamArgs) (<-chan core.StreamResult, error) {
				out := make(chan core.StreamResult, 2)
				out <- core.StreamResult{Tx: &core.TransformedTx{TxID: "0xt1"}}
				out <- core.StreamResult{Err: errors.New("cursor advance: connection reset")}
				close(out)
				return out, nil
			}

			// a truncated array must never read as a complete result, so the
			// abort has to reach a real client as a transport-level failure
			srv := httptest.NewServer(mux)
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/api/ETH/mainnet/tx")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			body, readErr := io.ReadAll(resp.Body)
			if readErr == nil {
				var txs []core.TransformedTx
				Expect(json.Unmarshal(body, &txs)).NotTo(Succeed())
			}
		})
	})

	Describe("wallet transaction streaming", func() {
		It("should pass the wallet and token filters through", func() {
			engine.StreamTransactionsFn = func(ctx context.Context, args core.TxStreamArgs) (<-chan core.StreamResult, error) {
				Expect(args.WalletID).To(Equal("wallet-1"))
				Expect(args.TokenAddress).To(Equal("0xtoken"))
				out := make(chan core.StreamResult)
				close(out)
				return out, nil
			}

			rec := do(http.MethodGet, "/api/ETH/mainnet/wallet/wallet-1/tx?token=0xtoken", "", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("balance", func() {
		It("should return the address balance", func() {
			engine.GetBalanceFn = func(ctx context.Context, chain, network, address, tokenAddress string) (core.Balance, error) {
				Expect(address).To(Equal(validAddress))
				Expect(tokenAddress).To(Equal("0xtoken"))
				return core.Balance{
					Confirmed:   big.NewInt(1000),
					Unconfirmed: big.NewInt(0),
					Balance:     big.NewInt(1000),
				}, nil
			}

			rec := do(http.MethodGet, "/api/ETH/mainnet/address/"+validAddress+"/balance?token=0xtoken", "", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"confirmed":1000`))
		})

		It("should reject a malformed address", func() {
			rec := do(http.MethodGet, "/api/ETH/mainnet/address/0x123/balance", "", nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("wallet balance", func() {
		It("should return the aggregated balance", func() {
			engine.GetWalletBalanceFn = func(ctx context.Context, walletID, chain, network string) (core.Balance, error) {
				Expect(walletID).To(Equal("wallet-1"))
				return core.Balance{
					Confirmed:   big.NewInt(15),
					Unconfirmed: big.NewInt(0),
					Balance:     big.NewInt(15),
				}, nil
			}

			rec := do(http.MethodGet, "/api/ETH/mainnet/wallet/wallet-1/balance", "", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"balance":15`))
		})
	})

	Describe("fee estimation", func() {
		It("should return the estimate for the target", func() {
			engine.EstimateFeeFn = func(ctx context.Context, chain, network string, target int) (core.FeeEstimate, error) {
				Expect(target).To(Equal(2))
				return core.FeeEstimate{Feerate: 12_340_000_000, Blocks: 2}, nil
			}

			rec := do(http.MethodGet, "/api/ETH/mainnet/fee/2", "", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"feerate":12340000000`))
		})

		It("should reject a non-numeric target", func() {
			rec := do(http.MethodGet, "/api/ETH/mainnet/fee/fast", "", nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("gas estimation", func() {
		It("should return the estimated gas limit", func() {
			engine.EstimateGasFn = func(ctx context.Context, chain, network string, msg core.GasEstimateMessage) (uint64, error) {
				Expect(msg.From).To(Equal(validAddress))
				return 21000, nil
			}

			rec := do(http.MethodPost, "/api/ETH/mainnet/gas", `{"from":"`+validAddress+`"}`, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"gasLimit":21000`))
		})
	})

	Describe("broadcast", func() {
		It("should return a single txid for a single raw transaction", func() {
			engine.BroadcastFn = func(ctx context.Context, chain, network string, rawTxs []string) ([]string, error) {
				Expect(rawTxs).To(Equal([]string{"0xdeadbeef"}))
				return []string{"0xhash"}, nil
			}

			rec := do(http.MethodPost, "/api/ETH/mainnet/tx/send", `{"rawTx":"0xdeadbeef"}`, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"txid":"0xhash"`))
		})

		It("should surface node rejections verbatim", func() {
			engine.BroadcastFn = func(ctx context.Context, chain, network string, rawTxs []string) ([]string, error) {
				return nil, errors.New("nonce too low")
			}

			rec := do(http.MethodPost, "/api/ETH/mainnet/tx/send", `{"rawTx":"0xdeadbeef"}`, nil)
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(rec.Body.String()).To(ContainSubstring("nonce too low"))
		})
	})

	Describe("wallet registration", func() {
		It("should require an auth token", func() {
			rec := do(http.MethodPost, "/api/ETH/mainnet/wallet", `{"addresses":["`+validAddress+`"]}`, nil)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("should register the wallet for a valid token", func() {
			engine.RegisterWalletFn = func(ctx context.Context, token, chain, network, name string, addresses []string) (string, error) {
				Expect(token).To(Equal("signed-token"))
				Expect(addresses).To(Equal([]string{validAddress}))
				return "wallet-1", nil
			}

			rec := do(http.MethodPost, "/api/ETH/mainnet/wallet",
				`{"name":"savings","addresses":["`+validAddress+`"]}`,
				map[string]string{"AUTH_TOKEN": "signed-token"})
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"walletId":"wallet-1"`))
		})

		It("should reject an invalid token with 401", func() {
			engine.RegisterWalletFn = func(ctx context.Context, token, chain, network, name string, addresses []string) (string, error) {
				return "", tokenIssuer.ErrTokenNotValid
			}

			rec := do(http.MethodPost, "/api/ETH/mainnet/wallet",
				`{"addresses":["`+validAddress+`"]}`,
				map[string]string{"AUTH_TOKEN": "garbage"})
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("chain info", func() {
		It("should report node and indexed heights", func() {
			engine.GetChainInfoFn = func(ctx context.Context, chain, network string) (core.ChainInfo, error) {
				return core.ChainInfo{
					Chain:         chain,
					Network:       network,
					NodeHeight:    105,
					IndexedHeight: 100,
				}, nil
			}

			rec := do(http.MethodGet, "/api/ETH/mainnet/info", "", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"nodeHeight":105`))
			Expect(rec.Body.String()).To(ContainSubstring(`"indexedHeight":100`))
		})

		It("should surface a node failure as 500", func() {
			engine.GetChainInfoFn = func(ctx context.Context, chain, network string) (core.ChainInfo, error) {
				return core.ChainInfo{}, errors.New("node unreachable")
			}

			rec := do(http.MethodGet, "/api/ETH/mainnet/info", "", nil)
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("blocks", func() {
		It("should return recent blocks with confirmations", func() {
			engine.ListBlocksFn = func(ctx context.Context, chain, network string, sinceHeight int64, limit int) ([]core.BlockResult, error) {
				Expect(sinceHeight).To(Equal(int64(100)))
				Expect(limit).To(Equal(5))
				return []core.BlockResult{{Height: 100, Confirmations: 1}}, nil
			}

			rec := do(http.MethodGet, "/api/ETH/mainnet/block?sinceHeight=100&limit=5", "", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"height":100`))
		})
	})
})
