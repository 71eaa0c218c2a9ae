package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type institutionPayload struct {
	Name string `json:"name" validate:"required,max=30"`
	Slug string `json:"slug" validate:"omitempty,max=30,slug"`
	URL  string `json:"cas_server_url" validate:"required,http_url"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := institutionPayload{
		Name: "Princeton",
		Slug: "princeton",
		URL:  "https://fed.princeton.edu/cas/",
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	payload := institutionPayload{
		Slug: "Not A Slug",
		URL:  "ftp://example.com",
	}

	err := ValidateStruct(payload)
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	tags := map[string]string{}
	for _, v := range vErrs {
		tags[v.Field] = v.Tag
	}
	if tags["name"] != "required" {
		t.Fatalf("expected name to fail required, got %v", tags)
	}
	if tags["slug"] != "slug" {
		t.Fatalf("expected slug to fail slug rule, got %v", tags)
	}
	if tags["cas_server_url"] != "http_url" {
		t.Fatalf("expected url to fail http_url, got %v", tags)
	}
	if vErrs.Error() == "" {
		t.Fatal("expected error string")
	}
}

func TestValidateVarNamesField(t *testing.T) {
	err := ValidateVar("address", "not-an-email", "required,email")
	vErrs, ok := err.(ValidationErrors)
	if !ok || len(vErrs) != 1 {
		t.Fatalf("expected single validation error, got %v", err)
	}
	if vErrs[0].Field != "address" || vErrs[0].Tag != "email" {
		t.Fatalf("unexpected failure %+v", vErrs[0])
	}

	if err := ValidateVar("address", "a@x.com", "required,email"); err != nil {
		t.Fatalf("expected valid email, got %v", err)
	}
}

func TestIsSlug(t *testing.T) {
	cases := map[string]bool{
		"princeton":     true,
		"mit-cas-2":     true,
		"":              false,
		"-leading":      false,
		"double--dash":  false,
		"UpperCase":     false,
		"with space":    false,
	}
	for input, want := range cases {
		if got := IsSlug(input); got != want {
			t.Fatalf("IsSlug(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	if err := RegisterValidation("never", func(validator.FieldLevel) bool { return false }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := ValidateVar("value", "x", "never"); err == nil {
		t.Fatal("expected custom rule to reject value")
	}
}
