package domain

// TurnNotification is the body PYDT posts to a user's webhook.
type TurnNotification struct {
	UserName string `json:"userName" validate:"required"`
	GameName string `json:"gameName" validate:"required"`
	Round    *int   `json:"round" validate:"required"`
}
