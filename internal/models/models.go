package models

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// ProcessingStatus is the backend pipeline state of an offer.
type ProcessingStatus string

const (
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// RefreshStage is the backend-reported progress of a single field re-extraction.
type RefreshStage string

const (
	RefreshRescraping RefreshStage = "rescraping"
	RefreshQuerying   RefreshStage = "querying"
	RefreshConsensus  RefreshStage = "consensus"
)

// Detail value sentinels.
const (
	ProcessingValue = "Processing..."
	NotAvailable    = "N/A"
)

// Detail field names as produced by the extraction backend.
const (
	FieldBankName                    = "bank_name"
	FieldAccountTitle                = "account_title"
	FieldBonusToBeReceived           = "bonus_to_be_received"
	FieldInitialDepositAmount        = "initial_deposit_amount"
	FieldMinimumDepositAmount        = "minimum_deposit_amount"
	FieldNumRequiredDeposits         = "num_required_deposits"
	FieldDealExpirationDate          = "deal_expiration_date"
	FieldMinimumMonthlyFee           = "minimum_monthly_fee"
	FieldFeeIsConditional            = "fee_is_conditional"
	FieldMinimumDailyBalanceRequired = "minimum_daily_balance_required"
	FieldDaysForDeposit              = "days_for_deposit"
	FieldDaysForBonus                = "days_for_bonus"
	FieldMustBeOpenFor               = "must_be_open_for"
	FieldClawbackClausePresent       = "clawback_clause_present"
	FieldClawbackDetails             = "clawback_details"
	FieldTotalDepositRequired        = "total_deposit_required"
	FieldBonusTiers                  = "bonus_tiers"
	FieldBonusTiersDetailed          = "bonus_tiers_detailed"
	FieldTotalDepositByTier          = "total_deposit_by_tier"
	FieldAdditionalConsiderations    = "additional_considerations"
)

// DetailFields lists every extracted field in display order.
var DetailFields = []string{
	FieldBankName,
	FieldAccountTitle,
	FieldBonusToBeReceived,
	FieldInitialDepositAmount,
	FieldMinimumDepositAmount,
	FieldNumRequiredDeposits,
	FieldDealExpirationDate,
	FieldMinimumMonthlyFee,
	FieldFeeIsConditional,
	FieldMinimumDailyBalanceRequired,
	FieldDaysForDeposit,
	FieldDaysForBonus,
	FieldMustBeOpenFor,
	FieldClawbackClausePresent,
	FieldClawbackDetails,
	FieldTotalDepositRequired,
	FieldBonusTiers,
	FieldBonusTiersDetailed,
	FieldTotalDepositByTier,
	FieldAdditionalConsiderations,
}

// IsDetailField reports whether name is a known extracted field.
func IsDetailField(name string) bool {
	for _, f := range DetailFields {
		if f == name {
			return true
		}
	}
	return false
}

// ManualContentPrefix marks offers that were created from pasted content.
const ManualContentPrefix = "manual-content"

// UserControlled holds the progress flags only the user may change.
type UserControlled struct {
	Opened    bool `json:"opened"`
	Deposited bool `json:"deposited"`
	Received  bool `json:"received"`
}

// TierInfo describes the tier a plan variant was built from.
type TierInfo struct {
	TierNumber    int     `json:"tier_number"`
	BonusAmount   float64 `json:"bonus_amount"`
	DepositAmount float64 `json:"deposit_amount"`
	TotalDeposit  float64 `json:"total_deposit,omitempty"`
	Description   string  `json:"description,omitempty"`
}

// Offer is a tracked bank bonus opportunity.
type Offer struct {
	ID              int                     `json:"id"`
	URL             string                  `json:"url"`
	Status          ProcessingStatus        `json:"status"`
	ProcessingStep  string                  `json:"processing_step,omitempty"`
	UserControlled  UserControlled          `json:"user_controlled"`
	Details         Details                 `json:"details"`
	RefreshStatus   map[string]RefreshStage `json:"refresh_status,omitempty"`
	OriginalContent string                  `json:"original_content,omitempty"`

	// Set on offers returned inside a generated plan.
	IsTierVariant   bool      `json:"is_tier_variant,omitempty"`
	OriginalOfferID int       `json:"original_offer_id,omitempty"`
	TierInfo        *TierInfo `json:"tier_info,omitempty"`

	fieldOrder []string
}

// UnmarshalJSON decodes an offer and remembers the order of its detail keys.
func (o *Offer) UnmarshalJSON(data []byte) error {
	type alias Offer
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var raw struct {
		Details json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*o = Offer(a)
	o.fieldOrder = objectKeys(raw.Details)
	return nil
}

// Detail returns the value of a detail field, or "" when absent.
func (o Offer) Detail(field string) string {
	return o.Details[field]
}

// IsProcessing reports whether the backend is still working on the offer.
func (o Offer) IsProcessing() bool {
	return o.Status == StatusProcessing
}

// IsManual reports whether the offer was created from pasted content.
func (o Offer) IsManual() bool {
	return strings.HasPrefix(o.URL, ManualContentPrefix) || o.OriginalContent != ""
}

// IsRefreshing reports whether any field is being re-extracted.
func (o Offer) IsRefreshing() bool {
	for _, stage := range o.RefreshStatus {
		if stage != "" {
			return true
		}
	}
	return false
}

// FieldOrder returns detail keys in the order the backend sent them.
// Keys without a recorded position follow in lexical order.
func (o Offer) FieldOrder() []string {
	keys := make([]string, 0, len(o.Details))
	seen := make(map[string]bool, len(o.Details))
	for _, k := range o.fieldOrder {
		if _, ok := o.Details[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}

	var rest []string
	for k := range o.Details {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)

	return append(keys, rest...)
}

// Clone returns a deep copy that shares no maps with o.
func (o Offer) Clone() Offer {
	c := o
	if o.Details != nil {
		c.Details = make(Details, len(o.Details))
		for k, v := range o.Details {
			c.Details[k] = v
		}
	}
	if o.RefreshStatus != nil {
		c.RefreshStatus = make(map[string]RefreshStage, len(o.RefreshStatus))
		for k, v := range o.RefreshStatus {
			c.RefreshStatus[k] = v
		}
	}
	if o.TierInfo != nil {
		info := *o.TierInfo
		c.TierInfo = &info
	}
	if o.fieldOrder != nil {
		c.fieldOrder = append([]string(nil), o.fieldOrder...)
	}
	return c
}

// Details maps extracted field names to their string values.
type Details map[string]string

// UnmarshalJSON accepts numbers, booleans and nested values and keeps them as strings.
func (d *Details) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = nil
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Details, len(raw))
	for k, v := range raw {
		out[k] = stringValue(v)
	}
	*d = out
	return nil
}

func stringValue(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}

	// Numbers, booleans, arrays and objects keep their JSON text.
	return string(trimmed)
}

func objectKeys(data json.RawMessage) []string {
	if len(data) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
	}

	return keys
}

// CreateOfferRequest is the body of a create or full-reprocess call.
type CreateOfferRequest struct {
	URL            string `json:"url,omitempty"`
	Content        string `json:"content,omitempty"`
	OriginalURL    string `json:"original_url,omitempty"`
	RefreshOfferID int    `json:"refresh_offer_id,omitempty"`
}

// IsManual reports whether the request submits raw content instead of a URL.
func (r CreateOfferRequest) IsManual() bool {
	return r.Content != ""
}

// DuplicateOfferResponse is the conflict payload returned on create.
type DuplicateOfferResponse struct {
	Error            string `json:"error"`
	DuplicateOfferID int    `json:"duplicate_offer_id"`
	DuplicateOffer   Offer  `json:"duplicate_offer"`
}

// RefreshFieldRequest asks the backend to re-extract a single field.
type RefreshFieldRequest struct {
	Field string `json:"field"`
}

// RefreshFieldResponse acknowledges a field refresh.
type RefreshFieldResponse struct {
	Status string `json:"status"`
	Field  string `json:"field"`
}

// UpdateFieldRequest writes a user-controlled flag or the offer URL.
type UpdateFieldRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StorageStats summarizes the backend's persisted offer store.
type StorageStats struct {
	TotalOffers      int   `json:"total_offers"`
	CompletedOffers  int   `json:"completed_offers"`
	FailedOffers     int   `json:"failed_offers"`
	ProcessingOffers int   `json:"processing_offers"`
	StorageFileSize  int64 `json:"storage_file_size"`
	NextOfferID      int   `json:"next_offer_id"`
}

// BackupResponse reports where the backend wrote a backup.
type BackupResponse struct {
	Message    string `json:"message"`
	BackupFile string `json:"backup_file"`
}

// MessageResponse is a plain acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}
