package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-fieldsales/internal/ledger"
	"github.com/noah-isme/backend-fieldsales/internal/pricing"
	"github.com/noah-isme/backend-fieldsales/internal/refdata"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{fmt.Errorf("quantity: %w", ErrValidation), CodeValidation, http.StatusUnprocessableEntity},
		{fmt.Errorf("line 1: %w", pricing.ErrInvalidQuantity), CodeValidation, http.StatusUnprocessableEntity},
		{&refdata.LookupError{Kind: "product", Key: "Shampoo"}, CodeLookup, http.StatusNotFound},
		{fmt.Errorf("ticket: %w", ErrNotFound), CodeNotFound, http.StatusNotFound},
		{ledger.Permanent(ledger.ErrNoBackup), CodeNotFound, http.StatusNotFound},
		{fmt.Errorf("attendance: %w", ErrAlreadyExists), CodeAlreadyExists, http.StatusConflict},
		{fmt.Errorf("travel: %w", ErrTransition), CodeConflict, http.StatusConflict},
		{&ledger.StoreError{Table: "Sales", Op: "append", Attempts: 3, Err: errors.New("quota")}, CodeStoreDown, http.StatusServiceUnavailable},
		{errors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		app := Classify(tc.err)
		require.Equal(t, tc.code, app.Code, tc.err.Error())
		require.Equal(t, tc.status, app.HTTPStatus, tc.err.Error())
	}
}

func TestClassifyKeepsAppError(t *testing.T) {
	in := NewAppError("RATE_LIMITED", "slow down", http.StatusTooManyRequests, nil)
	require.Same(t, in, Classify(fmt.Errorf("wrapped: %w", in)))
}

func TestWriteErrorEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, fmt.Errorf("bad: %w", ErrValidation))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), `"code":"VALIDATION_FAILED"`)
}
