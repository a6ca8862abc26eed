package model

// Operator is the Telegram user acting on a command or button.
type Operator struct {
	ID        int64
	Username  string
	FirstName string
}

// DisplayName is the @-less username when set, else the first name.
func (o Operator) DisplayName() string {
	if o.Username != "" {
		return o.Username
	}
	return o.FirstName
}
