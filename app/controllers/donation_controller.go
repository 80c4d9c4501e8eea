package controllers

import (
	"net/http"

	json "github.com/goccy/go-json"

	"patronpress/app/ledger"
	"patronpress/app/models"
	"patronpress/app/settle"
)

// DonationController handles HTTP requests for donations. Creation runs
// through the settlement coordinator; listing reads straight off the post.
type DonationController struct {
	ledger *ledger.Ledger
	settle *settle.Coordinator
}

// NewDonationController creates a new DonationController.
func NewDonationController(l *ledger.Ledger, c *settle.Coordinator) *DonationController {
	return &DonationController{ledger: l, settle: c}
}

// Create handles donating to a post. The request blocks until the transfer
// settles one way or the other.
func (dc *DonationController) Create(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "id")
	if err != nil {
		sendError(w, "invalid post ID", http.StatusBadRequest)
		return
	}

	var in models.DonationInput
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
	attached, err := models.ParseAmount(in.Attached)
	if err != nil {
		sendError(w, "invalid attached value: "+err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := dc.settle.Donate(r.Context(), postID, amount, attached, in.Message)
	if err != nil {
		fail(w, err)
		return
	}

	sendJSON(w, http.StatusCreated, entry)
}

// Index handles listing a post's donation log.
func (dc *DonationController) Index(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "id")
	if err != nil {
		sendError(w, "invalid post ID", http.StatusBadRequest)
		return
	}

	post, err := dc.ledger.Post(postID)
	if err != nil {
		fail(w, err)
		return
	}

	sendJSON(w, http.StatusOK, post.DonationLogs)
}
