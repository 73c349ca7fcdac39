package domain

import "errors"

var (
	ErrBusinessNotFound  = errors.New("store: business not found")
	ErrDuplicateBusiness = errors.New("store: business url already recorded")
	ErrDuplicateReview   = errors.New("store: duplicate review")
)
