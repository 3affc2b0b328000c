package validation

import (
	"errors"
	"testing"

	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/offerstate"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"https://www.chase.com/personal/checking/bonus", true},
		{"http://bank.example", true},
		{"  https://sub.bank.co.uk/path?x=1  ", true},
		{"www.chase.com", false},
		{"https://localhost", false},
		{"ftp://bank.example", false},
		{"", false},
	}

	for _, tt := range tests {
		err := ValidateURL(tt.url, "url")
		if tt.valid && err != nil {
			t.Errorf("Expected %q to be valid, got %v", tt.url, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("Expected %q to be rejected", tt.url)
		}
	}
}

func TestValidateCreateRequest(t *testing.T) {
	tests := []struct {
		name  string
		req   models.CreateOfferRequest
		field string
	}{
		{"url", models.CreateOfferRequest{URL: "https://bank.example/offer"}, ""},
		{"content", models.CreateOfferRequest{Content: "Get $300"}, ""},
		{"content with original url", models.CreateOfferRequest{Content: "Get $300", OriginalURL: "https://bank.example"}, ""},
		{"bad original url", models.CreateOfferRequest{Content: "Get $300", OriginalURL: "bank"}, "original_url"},
		{"empty", models.CreateOfferRequest{}, "url"},
		{"whitespace content", models.CreateOfferRequest{Content: " \t "}, "url"},
		{"both", models.CreateOfferRequest{URL: "https://bank.example", Content: "x"}, "url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCreateRequest(tt.req)
			if tt.field == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, ve.Field)
			}
		})
	}
}

func TestValidatePlanRequest(t *testing.T) {
	if err := ValidatePlanRequest(models.DefaultPlanRequest()); err != nil {
		t.Errorf("Expected defaults to be valid, got %v", err)
	}

	bad := []models.PlanRequest{
		{PayCycleDays: 6, AveragePaycheck: 2000, AccountsPerPaycycle: 2},
		{PayCycleDays: 32, AveragePaycheck: 2000, AccountsPerPaycycle: 2},
		{PayCycleDays: 14, AveragePaycheck: 99.99, AccountsPerPaycycle: 2},
		{PayCycleDays: 14, AveragePaycheck: 2000, AccountsPerPaycycle: 0},
		{PayCycleDays: 14, AveragePaycheck: 2000, AccountsPerPaycycle: 11},
	}
	for _, req := range bad {
		if err := ValidatePlanRequest(req); err == nil {
			t.Errorf("Expected %+v to be rejected", req)
		}
	}
}

func TestValidateField(t *testing.T) {
	if err := ValidateField(models.FieldBonusToBeReceived); err != nil {
		t.Errorf("Expected known field to pass, got %v", err)
	}
	if err := ValidateField("favorite_color"); err == nil {
		t.Errorf("Expected unknown field to be rejected")
	}
	if err := ValidateField(""); err == nil {
		t.Errorf("Expected empty field to be rejected")
	}
}

func TestValidateStatusKey(t *testing.T) {
	key, err := ValidateStatusKey(" deposited ")
	if err != nil || key != offerstate.KeyDeposited {
		t.Errorf("Expected deposited, got %s (%v)", key, err)
	}
	if _, err := ValidateStatusKey("claimed"); err == nil {
		t.Errorf("Expected unknown key to be rejected")
	}
}

func TestParseOfferID(t *testing.T) {
	if id, err := ParseOfferID("12"); err != nil || id != 12 {
		t.Errorf("Expected 12, got %d (%v)", id, err)
	}
	for _, in := range []string{"", "0", "-3", "abc"} {
		if _, err := ParseOfferID(in); err == nil {
			t.Errorf("Expected %q to be rejected", in)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  Chase\x00 Bank\x07 "); got != "Chase Bank" {
		t.Errorf("Expected 'Chase Bank', got %q", got)
	}
}
