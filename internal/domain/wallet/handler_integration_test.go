package wallet_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tripline/tripline-api/internal/domain/wallet"
	"github.com/tripline/tripline-api/internal/middleware"
	"github.com/tripline/tripline-api/internal/pkg/jwt"
)

type walletAPIResponse struct {
	Success bool `json:"success"`
	Data    struct {
		TotalBalance      string `json:"total_balance"`
		GiftCardBalance   string `json:"gift_card_balance"`
		AddedMoneyBalance string `json:"added_money_balance"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestWalletEndpointsIntegration(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	userID := uuid.New()

	repo := wallet.NewRepository(db)
	svc := wallet.NewService(repo)
	h := wallet.NewHandler(svc)

	jwtSvc := jwt.NewService("wallet-integration-secret", time.Hour)
	token, err := jwtSvc.GenerateAccessToken(userID, "user")
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}

	r := chi.NewRouter()
	r.Mount("/api/v1/wallet", h.Routes(middleware.Auth(jwtSvc)))

	t.Run("GET /balance initial", func(t *testing.T) {
		resp := performWalletRequest(t, r, token, http.MethodGet, "/api/v1/wallet/balance", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}
		body := decodeWalletResponse(t, resp)
		if !body.Success || body.Data.TotalBalance != "0" {
			t.Fatalf("expected success=true total=0, got success=%v total=%s", body.Success, body.Data.TotalBalance)
		}
	})

	t.Run("POST /topup", func(t *testing.T) {
		resp := performWalletRequest(t, r, token, http.MethodPost, "/api/v1/wallet/topup", map[string]interface{}{
			"amount":       "1000",
			"reference_id": "topup_1",
		})
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}
		body := decodeWalletResponse(t, resp)
		if !body.Success || body.Data.TotalBalance != "1000" {
			t.Fatalf("expected total=1000, got success=%v total=%s", body.Success, body.Data.TotalBalance)
		}
		if body.Data.AddedMoneyBalance != "1000" {
			t.Fatalf("expected added money=1000, got %s", body.Data.AddedMoneyBalance)
		}
	})

	t.Run("POST /topup idempotent same reference same amount", func(t *testing.T) {
		resp := performWalletRequest(t, r, token, http.MethodPost, "/api/v1/wallet/topup", map[string]interface{}{
			"amount":       "1000",
			"reference_id": "topup_1",
		})
		if resp.Code != http.StatusOK {
			t.Fatalf("retry expected 200, got %d", resp.Code)
		}
		body := decodeWalletResponse(t, resp)
		if !body.Success || body.Data.TotalBalance != "1000" {
			t.Fatalf("expected total=1000 after retry, got success=%v total=%s", body.Success, body.Data.TotalBalance)
		}
	})

	t.Run("POST /topup conflict same reference different amount", func(t *testing.T) {
		resp := performWalletRequest(t, r, token, http.MethodPost, "/api/v1/wallet/topup", map[string]interface{}{
			"amount":       "999",
			"reference_id": "topup_1",
		})
		if resp.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", resp.Code)
		}
	})

	t.Run("POST /topup rejects non-positive amount", func(t *testing.T) {
		resp := performWalletRequest(t, r, token, http.MethodPost, "/api/v1/wallet/topup", map[string]interface{}{
			"amount":       "0",
			"reference_id": "topup_zero",
		})
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.Code)
		}
	})

	t.Run("GET /transactions", func(t *testing.T) {
		resp := performWalletRequest(t, r, token, http.MethodGet, "/api/v1/wallet/transactions", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}
		var body struct {
			Success bool                 `json:"success"`
			Data    []wallet.Transaction `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode response failed: %v", err)
		}
		if !body.Success || len(body.Data) != 1 {
			t.Fatalf("expected one transaction, got success=%v n=%d", body.Success, len(body.Data))
		}
		if body.Data[0].Source != wallet.SourceTopUp {
			t.Fatalf("expected topup source, got %s", body.Data[0].Source)
		}
	})

	t.Run("JWT required", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet/balance", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req.WithContext(context.Background()))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 without jwt, got %d", rec.Code)
		}
	})
}

func performWalletRequest(t *testing.T, handler http.Handler, token, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload failed: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeWalletResponse(t *testing.T, rec *httptest.ResponseRecorder) walletAPIResponse {
	t.Helper()
	var out walletAPIResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response failed: %v; body=%s", err, rec.Body.String())
	}
	return out
}
