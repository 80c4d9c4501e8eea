package models

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// PostInput is the request payload for creating a post. The core ledger
// accepts any title/body; these limits guard the HTTP boundary only.
type PostInput struct {
	Title string `json:"title" validate:"required,max=200"`
	Body  string `json:"body" validate:"required,max=20000"`
}

// Validate checks the payload against its struct tags.
func (in *PostInput) Validate() error {
	return validate.Struct(in)
}

// CommentInput is the request payload for adding a comment. The ten-byte
// minimum is enforced in the ledger, not here, so the caller sees the
// ledger's validation error rather than a transport-level one.
type CommentInput struct {
	Body string `json:"body" validate:"required,max=5000"`
}

func (in *CommentInput) Validate() error {
	return validate.Struct(in)
}

// DonationInput is the request payload for donating to a post. Amount and
// Attached are decimal strings; Attached is the value the caller escrows
// with the call and must cover Amount.
type DonationInput struct {
	Amount   string `json:"amount" validate:"required"`
	Attached string `json:"attached" validate:"required"`
	Message  string `json:"message" validate:"max=500"`
}

func (in *DonationInput) Validate() error {
	return validate.Struct(in)
}

// DepositInput is the request payload for a wallet top-up.
type DepositInput struct {
	Amount string `json:"amount" validate:"required"`
}

func (in *DepositInput) Validate() error {
	return validate.Struct(in)
}
