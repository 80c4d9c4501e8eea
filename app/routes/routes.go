// Package routes wires the HTTP surface: the middleware chain, the public
// read endpoints, and the bearer-token protected write endpoints.
package routes

import (
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"patronpress/app/controllers"
	"patronpress/app/identity"
	"patronpress/app/ledger"
	"patronpress/app/middleware"
	"patronpress/app/settle"
	"patronpress/app/wallet"
)

// Deps carries the wired services the router serves.
type Deps struct {
	Ledger *ledger.Ledger
	Settle *settle.Coordinator
	Wallet *wallet.Store
	Tokens *identity.Service
}

// Setup defines the application's routes and returns a router.
func Setup(deps Deps) *mux.Router {
	router := mux.NewRouter()

	// Apply global middleware
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.ContentTypeJSON)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	})

	postController := controllers.NewPostController(deps.Ledger)
	commentController := controllers.NewCommentController(deps.Ledger)
	donationController := controllers.NewDonationController(deps.Ledger, deps.Settle)
	walletController := controllers.NewWalletController(deps.Wallet, identity.TokenSource{})

	api := router.PathPrefix("/api").Subrouter()

	// Public endpoints
	api.HandleFunc("/posts/{id:[0-9]+}", postController.Show).Methods("GET")
	api.HandleFunc("/posts/{id:[0-9]+}/donations", donationController.Index).Methods("GET")
	api.HandleFunc("/owner", postController.Owner).Methods("GET")
	api.HandleFunc("/stats", postController.Stats).Methods("GET")

	// Everything below requires a bearer token
	authed := api.NewRoute().Subrouter()
	authed.Use(middleware.Auth(deps.Tokens))

	posts := authed.PathPrefix("/posts").Subrouter()
	posts.HandleFunc("", postController.Create).Methods("POST")
	posts.HandleFunc("", postController.Index).Methods("GET")
	posts.HandleFunc("/{id:[0-9]+}", postController.Delete).Methods("DELETE")
	posts.HandleFunc("/{id:[0-9]+}/comments", commentController.Create).Methods("POST")
	posts.HandleFunc("/{id:[0-9]+}/comments/{cid:[0-9]+}", commentController.Delete).Methods("DELETE")
	posts.HandleFunc("/{id:[0-9]+}/donations", donationController.Create).Methods("POST")
	posts.HandleFunc("/{id:[0-9]+}/upvote", postController.Upvote).Methods("POST")
	posts.HandleFunc("/{id:[0-9]+}/upvote", postController.RetractUpvote).Methods("DELETE")
	posts.HandleFunc("/{id:[0-9]+}/downvote", postController.Downvote).Methods("POST")
	posts.HandleFunc("/{id:[0-9]+}/downvote", postController.RetractDownvote).Methods("DELETE")

	authed.HandleFunc("/wallet/topup", walletController.TopUp).Methods("POST")
	authed.HandleFunc("/wallet/balance", walletController.Balance).Methods("GET")

	return router
}
