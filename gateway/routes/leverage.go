package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"horus/crypto"
	"horus/native/leverage"
)

type leverageRoutes struct {
	ledger        LedgerReader
	fallbackIndex *big.Int
}

type errorResponse struct {
	Error string `json:"error"`
}

type pendingResponse struct {
	Address string `json:"address"`
	Block   uint64 `json:"block"`
	Pending string `json:"pending"`
}

type checkResponse struct {
	Users int    `json:"users"`
	Index string `json:"index"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (lr *leverageRoutes) mount(r chi.Router) {
	r.Get("/info", lr.getInfo)
	r.Get("/users", lr.listUsers)
	r.Get("/users/{address}", lr.getUser)
	r.Get("/users/{address}/pending", lr.getPending)
	r.Get("/check", lr.check)
}

func (lr *leverageRoutes) getInfo(w http.ResponseWriter, r *http.Request) {
	info, ok := lr.info(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, leverage.NewInfoView(info))
}

func (lr *leverageRoutes) listUsers(w http.ResponseWriter, r *http.Request) {
	rates, err := lr.rates(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	users, err := lr.ledger.Users()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]leverage.UserView, 0, len(users))
	for _, user := range users {
		views = append(views, leverage.NewUserView(user, ratesOrNil(rates)))
	}
	writeJSON(w, http.StatusOK, views)
}

func (lr *leverageRoutes) getUser(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.DecodeAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid address: %w", err))
		return
	}
	rates, err := lr.rates(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, ok := lr.user(w, addr)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, leverage.NewUserView(user, ratesOrNil(rates)))
}

func (lr *leverageRoutes) getPending(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.DecodeAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid address: %w", err))
		return
	}
	info, ok := lr.info(w)
	if !ok {
		return
	}
	block := info.LastRewardBlock
	if raw := r.URL.Query().Get("block"); raw != "" {
		block, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid block %q", raw))
			return
		}
	}
	user, ok := lr.user(w, addr)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, pendingResponse{
		Address: addr.String(),
		Block:   block,
		Pending: leverage.PendingReward(info, user, block).String(),
	})
}

func (lr *leverageRoutes) check(w http.ResponseWriter, r *http.Request) {
	rates, err := lr.rates(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	info, ok := lr.info(w)
	if !ok {
		return
	}
	users, err := lr.ledger.Users()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := checkResponse{Users: len(users), OK: true}
	if rates != nil {
		resp.Index = rates.Index().String()
	}
	status := http.StatusOK
	if err := leverage.CheckInvariants(info, users, ratesOrNil(rates)); err != nil {
		resp.OK = false
		resp.Error = err.Error()
		status = http.StatusConflict
	}
	writeJSON(w, status, resp)
}

func (lr *leverageRoutes) info(w http.ResponseWriter) (*leverage.Info, bool) {
	info, err := lr.ledger.GetInfo()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	if info == nil {
		writeError(w, http.StatusNotFound, leverage.ErrNotInitialised)
		return nil, false
	}
	return info, true
}

func (lr *leverageRoutes) user(w http.ResponseWriter, addr crypto.Address) (*leverage.UserInfo, bool) {
	user, err := lr.ledger.GetUser(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	if user == nil {
		user = leverage.NewUserInfo(addr)
	}
	return user, true
}

// rates resolves the index query parameter, falling back to the configured
// index. A nil adapter means neither is available.
func (lr *leverageRoutes) rates(r *http.Request) (*leverage.IndexAdapter, error) {
	index := lr.fallbackIndex
	if raw := r.URL.Query().Get("index"); raw != "" {
		parsed, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, fmt.Errorf("invalid index %q", raw)
		}
		index = parsed
	}
	if index == nil {
		return nil, nil
	}
	return leverage.NewIndexAdapter(index)
}

func ratesOrNil(rates *leverage.IndexAdapter) leverage.ExchangeRateAdapter {
	if rates == nil {
		return nil
	}
	return rates
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
