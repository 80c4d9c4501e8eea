package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patronpress/app/models"
)

func setupDonationRouter(env *testEnv) *mux.Router {
	router := mux.NewRouter()
	controller := NewDonationController(env.ledger, env.settle)

	router.HandleFunc("/posts/{id:[0-9]+}/donations", controller.Create).Methods("POST")
	router.HandleFunc("/posts/{id:[0-9]+}/donations", controller.Index).Methods("GET")

	return router
}

func TestDonationController(t *testing.T) {
	env := setupEnv(t)
	router := setupDonationRouter(env)

	_, err := env.ledger.CreatePost(userCtx(testOwner), "Donate Here", "content")
	require.NoError(t, err)

	_, err = env.wallet.Deposit("patron.near", models.NewAmount(50), "seed")
	require.NoError(t, err)

	t.Run("donate", func(t *testing.T) {
		payload := `{"amount": "5", "attached": "5", "message": "keep writing"}`

		req := httptest.NewRequest(http.MethodPost, "/posts/0/donations", strings.NewReader(payload))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, asUser(req, "patron.near"))

		assert.Equal(t, http.StatusCreated, w.Code)

		var response models.DonationLog
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, uint64(0), response.ID)
		assert.Equal(t, models.Account("patron.near"), response.Donor)
		assert.Equal(t, "keep writing", response.Message)

		balance, err := env.wallet.Balance("patron.near")
		require.NoError(t, err)
		assert.Equal(t, "45", balance.String())

		balance, err = env.wallet.Balance(testOwner)
		require.NoError(t, err)
		assert.Equal(t, "5", balance.String())
	})

	t.Run("list donations", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/posts/0/donations", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response []models.DonationLog
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		require.Len(t, response, 1)
		assert.Equal(t, "keep writing", response[0].Message)
	})

	t.Run("attached below amount", func(t *testing.T) {
		payload := `{"amount": "10", "attached": "3"}`

		req := httptest.NewRequest(http.MethodPost, "/posts/0/donations", strings.NewReader(payload))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, asUser(req, "patron.near"))

		assert.Equal(t, http.StatusPaymentRequired, w.Code)
	})

	t.Run("zero amount", func(t *testing.T) {
		payload := `{"amount": "0", "attached": "0"}`

		req := httptest.NewRequest(http.MethodPost, "/posts/0/donations", strings.NewReader(payload))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, asUser(req, "patron.near"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unparseable amount", func(t *testing.T) {
		payload := `{"amount": "lots", "attached": "lots"}`

		req := httptest.NewRequest(http.MethodPost, "/posts/0/donations", strings.NewReader(payload))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, asUser(req, "patron.near"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("wallet cannot cover transfer", func(t *testing.T) {
		payload := `{"amount": "1000", "attached": "1000"}`

		req := httptest.NewRequest(http.MethodPost, "/posts/0/donations", strings.NewReader(payload))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, asUser(req, "patron.near"))

		assert.Equal(t, http.StatusBadGateway, w.Code)

		// the failed attempt must not leave a log entry behind
		post, err := env.ledger.Post(0)
		require.NoError(t, err)
		assert.Len(t, post.DonationLogs, 1)
	})

	t.Run("donate to missing post", func(t *testing.T) {
		payload := `{"amount": "5", "attached": "5"}`

		req := httptest.NewRequest(http.MethodPost, "/posts/77/donations", strings.NewReader(payload))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, asUser(req, "patron.near"))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
