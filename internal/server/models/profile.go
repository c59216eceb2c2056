package models

import "time"

// ProfileParams are the fitness attributes attached to an account.
type ProfileParams struct {
	UserID string  `json:"user_id" validate:"required"`
	Age    int     `json:"age" validate:"gte=1,lte=120"`
	Height float64 `json:"height" validate:"gte=50,lte=300"`
	Weight float64 `json:"weight" validate:"gte=20,lte=500"`
	Goal   string  `json:"goal" validate:"required,max=200"`
}

type Profile struct {
	UserID    string
	Age       int
	Height    float64
	Weight    float64
	Goal      string
	CreatedAt time.Time
}

// AccountWithProfile is the read-back view of an account. Profile is nil
// when none was created yet.
type AccountWithProfile struct {
	ID       string
	Email    string
	Phone    string
	Nickname string
	Profile  *Profile
}
