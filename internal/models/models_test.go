package models

import (
	"testing"
	"time"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	if err := base.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if base.ID == "" {
		t.Fatal("expected base model ID to be generated")
	}
}

func TestEmbeddedModelsUseBaseBeforeCreate(t *testing.T) {
	cases := []struct {
		name  string
		model func() *BaseModel
	}{
		{"user_profile", func() *BaseModel {
			p := &UserProfile{}
			return &p.BaseModel
		}},
		{"linked_email", func() *BaseModel {
			e := &LinkedEmail{}
			return &e.BaseModel
		}},
		{"institution", func() *BaseModel {
			i := &Institution{}
			return &i.BaseModel
		}},
		{"institution_account", func() *BaseModel {
			a := &InstitutionAccount{}
			return &a.BaseModel
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := tc.model()
			if err := model.BeforeCreate(nil); err != nil {
				t.Fatalf("before create: %v", err)
			}
			if model.ID == "" {
				t.Fatal("expected ID to be generated")
			}
		})
	}
}

func TestUserBeforeCreateStampsDateJoinedInUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	joined := time.Date(2024, 3, 1, 2, 0, 0, 0, loc)

	u := &User{Username: "alice", DateJoined: joined}
	if err := u.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected ID to be generated")
	}
	if u.DateJoined.Location() != time.UTC {
		t.Fatalf("expected UTC date joined, got %v", u.DateJoined.Location())
	}
	if !u.DateJoined.Equal(joined) {
		t.Fatalf("expected same instant, got %v", u.DateJoined)
	}

	fresh := &User{Username: "bob"}
	if err := fresh.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if fresh.DateJoined.IsZero() {
		t.Fatal("expected date joined to be stamped")
	}
}

func TestUserIsTemporary(t *testing.T) {
	if !(&User{Username: "tmp-abc"}).IsTemporary("tmp-") {
		t.Fatal("expected tmp- user to be temporary")
	}
	if (&User{Username: "alice-tmp-"}).IsTemporary("tmp-") {
		t.Fatal("prefix must match at the start")
	}
	if (&User{Username: "tmp-abc"}).IsTemporary("") {
		t.Fatal("empty prefix never matches")
	}
	var nilUser *User
	if nilUser.IsTemporary("tmp-") {
		t.Fatal("nil user is not temporary")
	}
}

func TestStringRendering(t *testing.T) {
	withEmail := &User{Username: "alice", Email: "a@x.com"}
	noEmail := &User{Username: "bob"}
	institution := &Institution{Slug: "princeton"}

	profile := &UserProfile{User: withEmail}
	if got := profile.String(); got != "a@x.com" {
		t.Fatalf("profile with email = %q", got)
	}
	if got := (&UserProfile{User: noEmail}).String(); got != "bob" {
		t.Fatalf("profile without email = %q", got)
	}

	email := &LinkedEmail{Profile: profile, Address: "alt@x.com"}
	if got := email.String(); got != "a@x.com | alt@x.com" {
		t.Fatalf("linked email = %q", got)
	}

	account := &InstitutionAccount{Profile: profile, Institution: institution, CASID: "alice"}
	if got := account.String(); got != "a@x.com | princeton | account" {
		t.Fatalf("institution account = %q", got)
	}

	if got := institution.String(); got != "princeton" {
		t.Fatalf("institution = %q", got)
	}
}

func TestStringFallsBackWhenRelationsMissing(t *testing.T) {
	var nilInstitution *Institution
	cases := map[string]interface{ String() string }{
		"profile_without_user":      &UserProfile{},
		"email_without_profile":     &LinkedEmail{Address: "a@x.com"},
		"account_without_profile":   &InstitutionAccount{Institution: &Institution{Slug: "mit"}},
		"account_without_institute": &InstitutionAccount{Profile: &UserProfile{User: &User{Username: "a"}}},
		"nil_institution":           nilInstitution,
	}

	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			if got := value.String(); got != NullMarker {
				t.Fatalf("expected %q, got %q", NullMarker, got)
			}
		})
	}

	broken := &LinkedEmail{Profile: &UserProfile{}, Address: "a@x.com"}
	if got := broken.String(); got != "NULL | a@x.com" {
		t.Fatalf("expected broken profile marker in email rendering, got %q", got)
	}
}
