package controllers

import (
	"net/http"

	json "github.com/goccy/go-json"

	"patronpress/app/identity"
	"patronpress/app/models"
	"patronpress/app/wallet"
)

// WalletController handles HTTP requests for wallet balances and top-ups.
// Wallet operations always act on the caller's own account.
type WalletController struct {
	wallet *wallet.Store
	source identity.Source
}

// NewWalletController creates a new WalletController.
func NewWalletController(store *wallet.Store, source identity.Source) *WalletController {
	return &WalletController{wallet: store, source: source}
}

type balanceResponse struct {
	Account models.Account `json:"account"`
	Balance models.Amount  `json:"balance"`
}

// TopUp handles crediting the caller's wallet.
func (wc *WalletController) TopUp(w http.ResponseWriter, r *http.Request) {
	account, err := wc.source.Caller(r.Context())
	if err != nil {
		fail(w, err)
		return
	}

	var in models.DepositInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		sendError(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := in.Validate(); err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	amount, err := models.ParseAmount(in.Amount)
	if err != nil {
		sendError(w, "invalid amount: "+err.Error(), http.StatusBadRequest)
		return
	}

	balance, err := wc.wallet.Deposit(account, amount, "top-up")
	if err != nil {
		fail(w, err)
		return
	}

	sendJSON(w, http.StatusOK, balanceResponse{Account: account, Balance: balance})
}

// Balance handles reporting the caller's balance.
func (wc *WalletController) Balance(w http.ResponseWriter, r *http.Request) {
	account, err := wc.source.Caller(r.Context())
	if err != nil {
		fail(w, err)
		return
	}

	balance, err := wc.wallet.Balance(account)
	if err != nil {
		fail(w, err)
		return
	}

	sendJSON(w, http.StatusOK, balanceResponse{Account: account, Balance: balance})
}
