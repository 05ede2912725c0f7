package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "pixellocker/pkg/domain-errors"
)

type issueRequest struct {
	ID      string `json:"id" validate:"required,max=128"`
	Subject string `json:"subject" validate:"required,eth_addr"`
	Pointer string `json:"payload_pointer" validate:"notblank"`
}

func TestValidate(t *testing.T) {
	valid := issueRequest{ID: "cred-1", Subject: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", Pointer: "ipfs://x"}
	assert.NoError(t, Validate(valid))

	tests := []struct {
		name    string
		mutate  func(r *issueRequest)
		message string
	}{
		{"missing id", func(r *issueRequest) { r.ID = "" }, "id is required"},
		{"bad subject", func(r *issueRequest) { r.Subject = "0x1234" }, "subject must be a 0x-prefixed 20-byte address"},
		{"blank pointer", func(r *issueRequest) { r.Pointer = "   " }, "payload_pointer must not be blank"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := Validate(req)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			assert.EqualError(t, err, tt.message)
		})
	}
}
