package model

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	questionMinLen = 5
	questionMaxLen = 200
	minOptions     = 2
	maxOptions     = 10
	optionMaxLen   = 100

	usernameMinLen = 3
	usernameMaxLen = 50
	passwordMinLen = 8
	passwordMaxLen = 72 // bcrypt input limit
)

// Validate checks the input bounds and normalizes whitespace in place.
func (in *PollInput) Validate() error {
	in.Question = strings.TrimSpace(in.Question)
	if n := utf8.RuneCountInString(in.Question); n < questionMinLen || n > questionMaxLen {
		return fmt.Errorf("question must be %d-%d characters", questionMinLen, questionMaxLen)
	}

	if n := len(in.Options); n < minOptions || n > maxOptions {
		return fmt.Errorf("polls must have %d-%d options", minOptions, maxOptions)
	}
	for i, text := range in.Options {
		text = strings.TrimSpace(text)
		in.Options[i] = text
		if n := utf8.RuneCountInString(text); n < 1 || n > optionMaxLen {
			return fmt.Errorf("option %d must be 1-%d characters", i+1, optionMaxLen)
		}
	}
	return nil
}

func (c *Credentials) Validate() error {
	c.Username = strings.TrimSpace(c.Username)
	if n := utf8.RuneCountInString(c.Username); n < usernameMinLen || n > usernameMaxLen {
		return fmt.Errorf("username must be %d-%d characters", usernameMinLen, usernameMaxLen)
	}
	if n := len(c.Password); n < passwordMinLen || n > passwordMaxLen {
		return fmt.Errorf("password must be %d-%d characters", passwordMinLen, passwordMaxLen)
	}
	return nil
}
