package model

import "errors"

var (
	errIncompleteScores = errors.New("model: is_complete profile must carry non-empty scores")
	errNegativeAge      = errors.New("model: data_age_hours must be non-negative")
)
