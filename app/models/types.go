package models

import "time"

// Account is an opaque, comparable principal identifier: the acting
// account for every operation. The empty string is never a valid account.
type Account string

// Post is a blog entry owned by the ledger. The ID is assigned once by the
// ledger and never reused, even after deletion. Nested collections are
// stored inline so a post round-trips as a single value.
type Post struct {
	ID           uint64        `json:"post_id"`
	Title        string        `json:"title"`
	Body         string        `json:"body"`
	Author       Account       `json:"author"`
	CreatedAt    time.Time     `json:"created_at"`
	Comments     []Comment     `json:"comments"`
	Upvotes      []Account     `json:"upvotes"`
	Downvotes    []Account     `json:"downvotes"`
	DonationLogs []DonationLog `json:"donation_logs"`
}

// Comment lives inside exactly one post. IDs come from a single counter
// shared across all posts.
type Comment struct {
	ID        uint64    `json:"comment_id"`
	Body      string    `json:"body"`
	Author    Account   `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// DonationLog is the durable proof of a completed transfer. Entries are
// append-only: nothing ever mutates or removes one.
type DonationLog struct {
	ID        uint64    `json:"donation_id"`
	Amount    Amount    `json:"amount"`
	Donor     Account   `json:"donor"`
	CreatedAt time.Time `json:"created_at"`
	Message   string    `json:"message"`
}
