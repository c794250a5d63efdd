package validator

import "testing"

type rangeRequest struct {
	MaxTotal *int   `json:"maxTotal" validate:"omitempty,min=1,max=5000"`
	Mode     string `json:"mode" validate:"required,oneof=fanout single"`
}

func TestFieldErrorsUsesJSONNames(t *testing.T) {
	v := New()
	tooMany := 9000
	err := v.Struct(rangeRequest{MaxTotal: &tooMany})
	if err == nil {
		t.Fatal("expected validation error")
	}

	fields := FieldErrors(err)
	if fields["maxTotal"] != "must be at most 5000" {
		t.Fatalf("unexpected maxTotal message: %q", fields["maxTotal"])
	}
	if fields["mode"] != "is required" {
		t.Fatalf("unexpected mode message: %q", fields["mode"])
	}
}

func TestFieldErrorsIgnoresOtherErrors(t *testing.T) {
	if FieldErrors(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}
