package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cashdrop/internal/service"
)

func CreateAddressHandler(addrSvc *service.AddressService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var in service.SaveAddressInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		address, err := addrSvc.Create(r.Context(), a.ID, in)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, address)
	}
}

func ListAddressesHandler(addrSvc *service.AddressService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		addresses, err := addrSvc.ListByCustomer(r.Context(), a.ID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, addresses)
	}
}

func DeleteAddressHandler(addrSvc *service.AddressService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := addrSvc.Delete(r.Context(), a.ID, chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

type linkBankRequest struct {
	Provider   string `json:"provider"`
	ExternalID string `json:"external_id"`
}

// LinkBankHandler records the result of a completed bank-link flow; the
// token exchange itself happens at the provider.
func LinkBankHandler(bankSvc *service.BankService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req linkBankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		account, err := bankSvc.Link(r.Context(), a.ID, req.Provider, req.ExternalID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, account)
	}
}

func ListBankAccountsHandler(bankSvc *service.BankService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		accounts, err := bankSvc.ListByUser(r.Context(), a.ID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, accounts)
	}
}
