package validation

import (
	"errors"
	"strings"
	"testing"
)

type signup struct {
	Username string `form:"username" validate:"required,max=150,username"`
	Password string `form:"password1" validate:"required,min=8"`
	Confirm  string `form:"password2" validate:"required,eqfield=Password"`
}

func TestValidateReportsFormFieldNames(t *testing.T) {
	v := New()

	err := v.Validate(signup{Username: "bad name!", Password: "short", Confirm: "other"})

	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"username", "password1", "password2"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Errorf("expected failure for %s, got %v", field, verr.Fields)
		}
	}
	if !strings.HasPrefix(verr.Error(), "validation failed: ") {
		t.Fatalf("unexpected message %q", verr.Error())
	}
}

func TestValidateAcceptsValidInput(t *testing.T) {
	v := New()
	if err := v.Validate(signup{Username: "film.fan+1@home", Password: "longenough", Confirm: "longenough"}); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
}
