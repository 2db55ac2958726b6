package infra

import (
	"testing"

	"retailpos/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestMailer_DisabledWithoutHost(t *testing.T) {
	m := NewMailer(&config.Config{BusinessName: "Shop"})
	assert.False(t, m.Enabled())
	assert.ErrorIs(t, m.SendReceipt("a@b.c", "s", "b", ""), ErrMailerDisabled)

	var nilMailer *Mailer
	assert.False(t, nilMailer.Enabled())
}

func TestMailer_FromUsesBusinessName(t *testing.T) {
	m := NewMailer(&config.Config{SMTPHost: "smtp.local", SMTPPort: 587, SMTPUser: "pos@shop.vn", BusinessName: "Tap Hoa Lan"})
	assert.True(t, m.Enabled())
	assert.Equal(t, "Tap Hoa Lan <pos@shop.vn>", m.from)
	assert.Equal(t, "smtp.local:587", m.addr)
}
