package core

import (
	"errors"
	"testing"

	"beneplan/internal/types"
)

type validatedInput struct {
	TaxID string `validate:"required,taxid"`
	Phone string `validate:"required,brphone"`
}

func TestValidator_AcceptsValidDomainValues(t *testing.T) {
	v := NewValidator(nil)

	cases := []validatedInput{
		{TaxID: "52998224725", Phone: "11999998888"},
		{TaxID: "529.982.247-25", Phone: "(11) 99999-8888"},
		{TaxID: "111.444.777-35", Phone: "21 98888-7777"},
	}
	for _, in := range cases {
		if err := v.ValidateStruct(in); err != nil {
			t.Errorf("ValidateStruct(%+v) = %v, want nil", in, err)
		}
	}
}

func TestValidator_RejectsBadDomainValues(t *testing.T) {
	v := NewValidator(nil)

	cases := []struct {
		name string
		in   validatedInput
	}{
		{"bad check digits", validatedInput{TaxID: "52998224726", Phone: "11999998888"}},
		{"repeated digits", validatedInput{TaxID: "11111111111", Phone: "11999998888"}},
		{"short phone", validatedInput{TaxID: "52998224725", Phone: "12345"}},
		{"missing tax id", validatedInput{Phone: "11999998888"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateStruct(tc.in)
			if err == nil {
				t.Fatal("expected error")
			}
			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("error type = %T", err)
			}
			if len(appErr.Details) == 0 {
				t.Error("expected per-field details")
			}
		})
	}
}
