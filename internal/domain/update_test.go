package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdate_Command(t *testing.T) {
	testCases := []struct {
		name string
		text string
		want string
		args []string
	}{
		{name: "plain command", text: "/register", want: "/register"},
		{name: "bot suffix", text: "/Register@pydt_bot", want: "/register"},
		{name: "with args", text: "/help  me now", want: "/help", args: []string{"me", "now"}},
		{name: "not a command", text: "hello /help", want: ""},
		{name: "empty", text: "   ", want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			u := Update{Text: tc.text}
			assert.Equal(t, tc.want, u.Command())
			assert.Equal(t, tc.args, u.Args())
		})
	}
}

func TestRegistration_Registered(t *testing.T) {
	var nilReg *Registration
	assert.False(t, nilReg.Registered())
	assert.False(t, (&Registration{UserID: 1, ChatID: 1}).Registered())
	assert.True(t, (&Registration{UserID: 1, ChatID: 1, Token: "abc"}).Registered())
}
