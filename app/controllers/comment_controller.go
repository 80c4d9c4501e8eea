package controllers

import (
	"net/http"

	json "github.com/goccy/go-json"

	"patronpress/app/ledger"
	"patronpress/app/models"
)

// CommentController handles HTTP requests for comments.
type CommentController struct {
	ledger *ledger.Ledger
}

// NewCommentController creates a new CommentController.
func NewCommentController(l *ledger.Ledger) *CommentController {
	return &CommentController{ledger: l}
}

// Create handles adding a comment to a post.
func (cc *CommentController) Create(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "id")
	if err != nil {
		sendError(w, "invalid post ID", http.StatusBadRequest)
		return
	}

	var in models.CommentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		sendError(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := in.Validate(); err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := cc.ledger.AddComment(r.Context(), postID, in.Body)
	if err != nil {
		fail(w, err)
		return
	}

	sendJSON(w, http.StatusCreated, map[string]uint64{"comment_id": id})
}

// Delete handles removing a comment from a post.
func (cc *CommentController) Delete(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "id")
	if err != nil {
		sendError(w, "invalid post ID", http.StatusBadRequest)
		return
	}
	commentID, err := pathID(r, "cid")
	if err != nil {
		sendError(w, "invalid comment ID", http.StatusBadRequest)
		return
	}

	if err := cc.ledger.DeleteComment(r.Context(), postID, commentID); err != nil {
		fail(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
