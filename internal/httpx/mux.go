package httpx

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tradelane/contract-ledger/internal/core"
	"github.com/tradelane/contract-ledger/internal/service"
	"github.com/tradelane/contract-ledger/pkg/rate"
)

// NewMux wires the ledger routes behind the middleware chain: panic
// recover, request logging, optional API-key auth, per-IP rate limit.
func NewMux(logger *slog.Logger, svc *service.Service, apiKeys string, rps int) http.Handler {
	r := chi.NewRouter()
	r.Use(withRecover)
	r.Use(withLogging(logger))
	r.Use(NewAPIKeyAuth(apiKeys).Middleware)
	r.Use(withRate(rate.New(rps, time.Minute)))

	// health
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC()})
	})

	// ingest one workflow action
	r.Post("/contract/log", func(w http.ResponseWriter, req *http.Request) {
		var in struct {
			ContractAddress string
			Action          string
			TxHash          string
			Account         string
			Exporter        string
			Importer        string
			Logistics       []string
			Insurance       string
			Inspector       string
			RequiredAmount  json.Number
			Extra           map[string]any
			VerifyOnChain   bool
		}
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid_json")
			return
		}

		idem := req.Header.Get("Idempotency-Key")
		hash := ""
		if idem != "" {
			h := sha256.Sum256([]byte(idem))
			hash = hex.EncodeToString(h[:])
		}

		out, err := svc.Append(req.Context(), core.AppendAction{
			ContractAddress: in.ContractAddress,
			Action:          in.Action,
			TxHash:          in.TxHash,
			Account:         in.Account,
			Exporter:        in.Exporter,
			Importer:        in.Importer,
			Logistics:       in.Logistics,
			Insurance:       in.Insurance,
			Inspector:       in.Inspector,
			RequiredAmount:  in.RequiredAmount.String(),
			Extra:           in.Extra,
			VerifyOnChain:   in.VerifyOnChain,
			IdemHash:        hash,
		})
		if err != nil {
			writeSvcErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	})

	// contracts a user participates in, with the roles held
	r.Get("/contract/user/{address}", func(w http.ResponseWriter, req *http.Request) {
		out, err := svc.ByUser(req.Context(), chi.URLParam(req, "address"))
		if err != nil {
			writeSvcErr(w, err)
			return
		}
		if out == nil {
			out = []core.UserContract{}
		}
		writeJSON(w, http.StatusOK, out)
	})

	// full ledger record
	r.Get("/contract/{address}", func(w http.ResponseWriter, req *http.Request) {
		out, err := svc.Get(req.Context(), chi.URLParam(req, "address"))
		if err != nil {
			writeSvcErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	// derived milestone flags
	r.Get("/contract/{address}/step", func(w http.ResponseWriter, req *http.Request) {
		out, err := svc.StepStatus(req.Context(), chi.URLParam(req, "address"))
		if err != nil {
			writeSvcErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	// paged action log
	r.Get("/contract/{address}/history", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		var f service.HistoryFilter
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				f.Limit = n
			}
		}
		if v := q.Get("offset"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				f.Offset = n
			}
		}
		out, err := svc.History(req.Context(), chi.URLParam(req, "address"), f)
		if err != nil {
			writeSvcErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	return r
}

func writeSvcErr(w http.ResponseWriter, err error) {
	var de *service.DomainError
	switch {
	case errors.Is(err, service.ErrValidation):
		writeErr(w, http.StatusBadRequest, "validation")
	case errors.As(err, &de):
		writeErr(w, http.StatusBadRequest, de.Msg)
	case errors.Is(err, service.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not_found")
	case errors.Is(err, service.ErrConflict):
		writeErr(w, http.StatusConflict, "conflict")
	default:
		writeErr(w, http.StatusInternalServerError, "internal_error")
	}
}
