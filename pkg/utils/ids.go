package utils

import "github.com/google/uuid"

// GenMessageID returns a new unique message id.
func GenMessageID() string {
	return "msg-" + uuid.NewString()
}

// GenThreadID returns a new unique thread id.
func GenThreadID() string {
	return "thr-" + uuid.NewString()
}
