package domain

import "errors"

var (
	// ErrAlreadyCompleted is returned when a non-daily quiz was already completed by the user.
	ErrAlreadyCompleted = errors.New("quiz already completed")
	// ErrDailyLimitReached is returned when a daily quiz was already completed today.
	ErrDailyLimitReached = errors.New("daily quiz already completed today")
	// ErrAttemptCompleted is returned for any mutation of a finished attempt.
	ErrAttemptCompleted = errors.New("attempt already completed")
	// ErrInvalidQuestionIndex indicates a submitted question index is out of range.
	ErrInvalidQuestionIndex = errors.New("invalid question index")
	// ErrInvalidAmount rejects negative point grants.
	ErrInvalidAmount = errors.New("invalid point amount")
	// ErrInvalidSource rejects point grants from an unknown source.
	ErrInvalidSource = errors.New("invalid point source")

	ErrCompetitionFull = errors.New("competition is full")
	ErrAlreadyJoined   = errors.New("already joined competition")
	// ErrNotInWindow is returned when joining outside [start, end].
	ErrNotInWindow = errors.New("competition is not running")
	// ErrNotEnded is returned when winners are requested before the end date.
	ErrNotEnded = errors.New("competition has not ended")
	// ErrInvalidCompetition rejects a competition whose window or prize setup is malformed.
	ErrInvalidCompetition = errors.New("invalid competition")

	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
	ErrQuizNotFound        = errors.New("quiz not found")
	ErrQuizInactive        = errors.New("quiz is not active")
	// ErrInvalidQuiz rejects quiz content without questions or without exactly one correct option per question.
	ErrInvalidQuiz = errors.New("invalid quiz")
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrCompetitionNotFound = errors.New("competition not found")
	ErrCompetitionExists   = errors.New("competition already exists")
	// ErrDuplicateCompletion is returned by storage when a second completed attempt
	// would exist for the same (user, quiz, completion key).
	ErrDuplicateCompletion = errors.New("duplicate completion")
	ErrInvalidReferralCode = errors.New("invalid referral code")
	ErrAlreadyReferred     = errors.New("user was already referred")
	// ErrReferralCodeTaken is returned by storage when a referral code already belongs to another user.
	ErrReferralCodeTaken = errors.New("referral code already taken")
	// ErrChannelNotFound covers unknown channels and channels that no longer pay out.
	ErrChannelNotFound = errors.New("channel not found")
	ErrChannelExists   = errors.New("channel already registered")
	ErrInvalidChannel  = errors.New("invalid channel")
	// ErrNotParticipant is returned for per-participant views of a competition the user never joined.
	ErrNotParticipant = errors.New("not participating in competition")
)
