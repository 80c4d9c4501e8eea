package models

// CommentIndex returns the position of the comment with the given ID, or
// -1 when no comment matches.
func (p *Post) CommentIndex(commentID uint64) int {
	for i := range p.Comments {
		if p.Comments[i].ID == commentID {
			return i
		}
	}
	return -1
}

// RemoveCommentAt removes the comment at list offset i. The offset must be
// in range; callers are expected to have checked it.
func (p *Post) RemoveCommentAt(i int) {
	p.Comments = append(p.Comments[:i], p.Comments[i+1:]...)
}

// AddUpvote records an upvote by account. Votes are sets: a second upvote
// by the same account is a no-op and returns false.
func (p *Post) AddUpvote(account Account) bool {
	if containsAccount(p.Upvotes, account) {
		return false
	}
	p.Upvotes = append(p.Upvotes, account)
	return true
}

// RemoveUpvote retracts an upvote. Returns false when no vote was present.
func (p *Post) RemoveUpvote(account Account) bool {
	var removed bool
	p.Upvotes, removed = removeAccount(p.Upvotes, account)
	return removed
}

// AddDownvote records a downvote by account. An account may sit in both
// vote sets at once; only duplicates within one set are rejected.
func (p *Post) AddDownvote(account Account) bool {
	if containsAccount(p.Downvotes, account) {
		return false
	}
	p.Downvotes = append(p.Downvotes, account)
	return true
}

// RemoveDownvote retracts a downvote. Returns false when no vote was present.
func (p *Post) RemoveDownvote(account Account) bool {
	var removed bool
	p.Downvotes, removed = removeAccount(p.Downvotes, account)
	return removed
}

func containsAccount(set []Account, account Account) bool {
	for _, a := range set {
		if a == account {
			return true
		}
	}
	return false
}

func removeAccount(set []Account, account Account) ([]Account, bool) {
	for i, a := range set {
		if a == account {
			return append(set[:i], set[i+1:]...), true
		}
	}
	return set, false
}
