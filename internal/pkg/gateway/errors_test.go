package gateway

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stripe/stripe-go/v76"
	"github.com/stretchr/testify/assert"
)

func TestTranslateStripeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{
			name: "card error type",
			err:  &stripe.Error{Type: stripe.ErrorTypeCard, Msg: "Your card was declined."},
			want: CodeCardDeclined,
		},
		{
			name: "declined code without card type",
			err:  &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Code: stripe.ErrorCodeCardDeclined},
			want: CodeCardDeclined,
		},
		{
			name: "unauthorized",
			err:  &stripe.Error{Type: stripe.ErrorTypeAPI, HTTPStatusCode: http.StatusUnauthorized},
			want: CodeAuthentication,
		},
		{
			name: "invalid request",
			err:  &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Msg: "No such event: evt_nope"},
			want: CodeInvalidRequest,
		},
		{
			name: "other stripe error",
			err:  &stripe.Error{Type: stripe.ErrorTypeAPI, HTTPStatusCode: http.StatusInternalServerError},
			want: CodeGateway,
		},
		{
			name: "plain error",
			err:  errors.New("dial tcp: connection refused"),
			want: CodeConnection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateStripeError(tt.err)
			assert.Equal(t, tt.want, CodeOf(got))
		})
	}
}

func TestTranslateStripeErrorNil(t *testing.T) {
	assert.NoError(t, translateStripeError(nil))
}

func TestTranslateStripeErrorUnwrap(t *testing.T) {
	orig := &stripe.Error{Type: stripe.ErrorTypeCard}
	got := translateStripeError(orig)

	var sErr *stripe.Error
	assert.True(t, errors.As(got, &sErr))
	assert.Same(t, orig, sErr)
}

func TestErrorPredicates(t *testing.T) {
	declined := &Error{Code: CodeCardDeclined, Message: "declined"}
	assert.True(t, IsCardDeclined(declined))
	assert.False(t, IsInvalidRequest(declined))

	invalid := &Error{Code: CodeInvalidRequest}
	assert.True(t, IsInvalidRequest(invalid))

	auth := &Error{Code: CodeAuthentication}
	assert.True(t, IsAuthentication(auth))

	conn := &Error{Code: CodeConnection}
	assert.True(t, IsConnection(conn))

	assert.False(t, IsCardDeclined(errors.New("not a gateway error")))
	assert.Equal(t, Code(""), CodeOf(errors.New("not a gateway error")))
}
