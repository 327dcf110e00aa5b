package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeKey(t *testing.T) {
	assert.Equal(t, "captcha_user@example.com", CodeKey("captcha", "user@example.com"))
	assert.Equal(t, "update_password_captcha_a@b.c", CodeKey("update_password_captcha", "a@b.c"))
}
