package controllers

import (
	"context"
	"net/http"

	json "github.com/goccy/go-json"

	"patronpress/app/ledger"
	"patronpress/app/models"
)

// PostController handles HTTP requests for posts, votes, and ledger-wide
// reads (owner, counters).
type PostController struct {
	ledger *ledger.Ledger
}

// NewPostController creates a new PostController.
func NewPostController(l *ledger.Ledger) *PostController {
	return &PostController{ledger: l}
}

// Create handles creating a new post.
func (pc *PostController) Create(w http.ResponseWriter, r *http.Request) {
	var in models.PostInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		sendError(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := in.Validate(); err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := pc.ledger.CreatePost(r.Context(), in.Title, in.Body)
	if err != nil {
		fail(w, err)
		return
	}

	sendJSON(w, http.StatusCreated, map[string]uint64{"post_id": id})
}

// Index handles listing the caller's posts.
func (pc *PostController) Index(w http.ResponseWriter, r *http.Request) {
	posts, err := pc.ledger.PostsByCaller(r.Context())
	if err != nil {
		fail(w, err)
		return
	}

	sendJSON(w, http.StatusOK, posts)
}

// Show handles fetching a single post.
func (pc *PostController) Show(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		sendError(w, "invalid post ID", http.StatusBadRequest)
		return
	}

	post, err := pc.ledger.Post(id)
	if err != nil {
		fail(w, err)
		return
	}

	sendJSON(w, http.StatusOK, post)
}

// Delete handles deleting a post.
func (pc *PostController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		sendError(w, "invalid post ID", http.StatusBadRequest)
		return
	}

	if err := pc.ledger.DeletePost(r.Context(), id); err != nil {
		fail(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Upvote handles recording an upvote by the caller.
func (pc *PostController) Upvote(w http.ResponseWriter, r *http.Request) {
	pc.vote(w, r, pc.ledger.Upvote)
}

// Downvote handles recording a downvote by the caller.
func (pc *PostController) Downvote(w http.ResponseWriter, r *http.Request) {
	pc.vote(w, r, pc.ledger.Downvote)
}

// RetractUpvote handles withdrawing the caller's upvote.
func (pc *PostController) RetractUpvote(w http.ResponseWriter, r *http.Request) {
	pc.vote(w, r, pc.ledger.RetractUpvote)
}

// RetractDownvote handles withdrawing the caller's downvote.
func (pc *PostController) RetractDownvote(w http.ResponseWriter, r *http.Request) {
	pc.vote(w, r, pc.ledger.RetractDownvote)
}

func (pc *PostController) vote(w http.ResponseWriter, r *http.Request, op func(context.Context, uint64) error) {
	id, err := pathID(r, "id")
	if err != nil {
		sendError(w, "invalid post ID", http.StatusBadRequest)
		return
	}

	if err := op(r.Context(), id); err != nil {
		fail(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Owner handles reporting the ledger owner.
func (pc *PostController) Owner(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]models.Account{"owner": pc.ledger.Owner()})
}

// Stats handles reporting the ledger counters.
func (pc *PostController) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := pc.ledger.Stats()
	if err != nil {
		fail(w, err)
		return
	}

	sendJSON(w, http.StatusOK, stats)
}
