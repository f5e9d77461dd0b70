package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steemit/postboard/internal/posts"
)

func TestValidateCreatePost(t *testing.T) {
	req, result := ValidateCreatePost([]byte(`{"posterName":"Alice","content":"Hello","replyToId":null}`))
	require.True(t, result.Valid())
	require.NoError(t, result.Err())
	assert.Equal(t, "Alice", *req.PosterName)
	assert.Equal(t, "Hello", *req.Content)
	assert.Nil(t, req.ReplyToID)

	in := req.input()
	assert.Equal(t, posts.CreateInput{PosterName: "Alice", Content: "Hello"}, in)

	_, result = ValidateCreatePost([]byte(`{"posterName":"Alice","content":"Hello","replyToId":42}`))
	assert.False(t, result.Valid())
	assert.Equal(t, []posts.FieldError{{Field: "replyToId", Message: "must be a string"}}, result.Errors)

	_, result = ValidateCreatePost([]byte(`null`))
	assert.Equal(t, "body", result.Errors[0].Field)

	var ve *posts.ValidationError
	assert.ErrorAs(t, result.Err(), &ve)
}

func TestValidateUpdatePost(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		valid bool
	}{
		{name: "valid", body: `{"content":"new"}`, valid: true},
		{name: "extra fields ignored", body: `{"content":"new","id":"x"}`, valid: true},
		{name: "missing", body: `{}`, valid: false},
		{name: "null", body: `{"content":null}`, valid: false},
		{name: "number", body: `{"content":1}`, valid: false},
		{name: "blank", body: `{"content":"   "}`, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, result := ValidateUpdatePost([]byte(tt.body))
			assert.Equal(t, tt.valid, result.Valid())
			if !tt.valid {
				require.Len(t, result.Errors, 1)
				assert.Equal(t, "content", result.Errors[0].Field)
			}
		})
	}
}

func TestValidateID(t *testing.T) {
	assert.True(t, ValidateID("0190b7d4-0000-7000-8000-000000000000").Valid())
	assert.False(t, ValidateID(" ").Valid())
}
