package emailtypes

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Env maps email type settings to environment variable names.
type Env struct {
	Order               string
	IntakeAddress       string
	EpostInnCategory    string
	Rf1350Enabled       string
	Rf1350TestProject   string
	LoyvegarantiEnabled string
	LoyvegarantiRecno   string
	PengetransportenTo  string
	PengetransportenOn  string
	InnsynTo            string
	InnsynOn            string
	CaseNumberEnabled   string
}

// Config holds the settings of every email type.
type Config struct {
	// Order is the classification order by type name.
	Order []string `toml:"handler_order"`
	// IntakeAddress is the address of the shared intake mailbox.
	IntakeAddress string `toml:"intake_address"`
	// EpostInnCategory is the archive category of incoming mail, e.g. "recno:110".
	EpostInnCategory string `toml:"document_category_epost_inn"`

	Rf1350           Rf1350Config       `toml:"rf1350"`
	Loyvegaranti     LoyvegarantiConfig `toml:"loyvegaranti"`
	Pengetransporten ForwardConfig      `toml:"pengetransporten"`
	Innsyn           ForwardConfig      `toml:"innsyn"`
	CaseNumber       CaseNumberConfig   `toml:"case_number"`
}

type Rf1350Config struct {
	Enabled  *bool    `toml:"enabled"`
	Sender   string   `toml:"sender"`
	Subjects []string `toml:"subjects"`
	// TestProjectNumber replaces extracted project numbers outside production.
	TestProjectNumber string `toml:"test_project_number"`
}

type LoyvegarantiConfig struct {
	Enabled                    *bool    `toml:"enabled"`
	Sender                     string   `toml:"sender"`
	Keywords                   []string `toml:"keywords"`
	BlockedPrefixes            []string `toml:"blocked_prefixes"`
	SenderReferenceNumber      string   `toml:"sender_reference_number"`
	ResponsibleEnterpriseRecno string   `toml:"responsible_enterprise_recno"`
}

// ForwardConfig configures keyword matched types that forward to a distribution list.
type ForwardConfig struct {
	Enabled          *bool    `toml:"enabled"`
	Keywords         []string `toml:"keywords"`
	ForwardAddresses []string `toml:"forward_addresses"`
}

type CaseNumberConfig struct {
	Enabled *bool `toml:"enabled"`
}

func enabled(b *bool) bool { return b != nil && *b }

func boolPtr(b bool) *bool { return &b }

// Finalize applies defaults, environment overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites fields from overlay that are set.
func (c *Config) Merge(overlay *Config) {
	if overlay.Order != nil {
		c.Order = overlay.Order
	}
	if overlay.IntakeAddress != "" {
		c.IntakeAddress = overlay.IntakeAddress
	}
	if overlay.EpostInnCategory != "" {
		c.EpostInnCategory = overlay.EpostInnCategory
	}

	if overlay.Rf1350.Enabled != nil {
		c.Rf1350.Enabled = overlay.Rf1350.Enabled
	}
	if overlay.Rf1350.Sender != "" {
		c.Rf1350.Sender = overlay.Rf1350.Sender
	}
	if overlay.Rf1350.Subjects != nil {
		c.Rf1350.Subjects = overlay.Rf1350.Subjects
	}
	if overlay.Rf1350.TestProjectNumber != "" {
		c.Rf1350.TestProjectNumber = overlay.Rf1350.TestProjectNumber
	}

	if overlay.Loyvegaranti.Enabled != nil {
		c.Loyvegaranti.Enabled = overlay.Loyvegaranti.Enabled
	}
	if overlay.Loyvegaranti.Sender != "" {
		c.Loyvegaranti.Sender = overlay.Loyvegaranti.Sender
	}
	if overlay.Loyvegaranti.Keywords != nil {
		c.Loyvegaranti.Keywords = overlay.Loyvegaranti.Keywords
	}
	if overlay.Loyvegaranti.BlockedPrefixes != nil {
		c.Loyvegaranti.BlockedPrefixes = overlay.Loyvegaranti.BlockedPrefixes
	}
	if overlay.Loyvegaranti.SenderReferenceNumber != "" {
		c.Loyvegaranti.SenderReferenceNumber = overlay.Loyvegaranti.SenderReferenceNumber
	}
	if overlay.Loyvegaranti.ResponsibleEnterpriseRecno != "" {
		c.Loyvegaranti.ResponsibleEnterpriseRecno = overlay.Loyvegaranti.ResponsibleEnterpriseRecno
	}

	c.Pengetransporten.merge(&overlay.Pengetransporten)
	c.Innsyn.merge(&overlay.Innsyn)

	if overlay.CaseNumber.Enabled != nil {
		c.CaseNumber.Enabled = overlay.CaseNumber.Enabled
	}
}

func (c *ForwardConfig) merge(overlay *ForwardConfig) {
	if overlay.Enabled != nil {
		c.Enabled = overlay.Enabled
	}
	if overlay.Keywords != nil {
		c.Keywords = overlay.Keywords
	}
	if overlay.ForwardAddresses != nil {
		c.ForwardAddresses = overlay.ForwardAddresses
	}
}

func (c *Config) loadDefaults() {
	if len(c.Order) == 0 {
		c.Order = slices.Clone(DefaultOrder)
	}

	if c.Rf1350.Enabled == nil {
		c.Rf1350.Enabled = boolPtr(true)
	}
	if c.Rf1350.Sender == "" {
		c.Rf1350.Sender = "ikkesvar@regionalforvaltning.no"
	}
	if len(c.Rf1350.Subjects) == 0 {
		c.Rf1350.Subjects = []string{
			"RF13.50 - Automatisk kvittering på innsendt søknad",
			"RF13.50 - Automatisk epost til arkiv",
		}
	}

	if c.Loyvegaranti.Enabled == nil {
		c.Loyvegaranti.Enabled = boolPtr(true)
	}
	if c.Loyvegaranti.Sender == "" {
		c.Loyvegaranti.Sender = "post@matrixinsurance.no"
	}
	if len(c.Loyvegaranti.Keywords) == 0 {
		c.Loyvegaranti.Keywords = []string{"Løyve", "Org.nr"}
	}
	if len(c.Loyvegaranti.BlockedPrefixes) == 0 {
		c.Loyvegaranti.BlockedPrefixes = []string{"Fwd:", "FW:", "Forward:", "Videresend:"}
	}
	if c.Loyvegaranti.SenderReferenceNumber == "" {
		c.Loyvegaranti.SenderReferenceNumber = "966431695"
	}

	if c.Pengetransporten.Enabled == nil {
		c.Pengetransporten.Enabled = boolPtr(true)
	}
	if len(c.Pengetransporten.Keywords) == 0 {
		c.Pengetransporten.Keywords = slices.Clone(invoiceKeywords)
	}

	if c.Innsyn.Enabled == nil {
		c.Innsyn.Enabled = boolPtr(false)
	}
	if len(c.Innsyn.Keywords) == 0 {
		c.Innsyn.Keywords = []string{"Innsyn"}
	}

	if c.CaseNumber.Enabled == nil {
		c.CaseNumber.Enabled = boolPtr(false)
	}
}

func (c *Config) loadEnv(env *Env) {
	if v := getenv(env.Order); v != "" {
		c.Order = splitList(v)
	}
	if v := getenv(env.IntakeAddress); v != "" {
		c.IntakeAddress = v
	}
	if v := getenv(env.EpostInnCategory); v != "" {
		c.EpostInnCategory = v
	}
	envBool(env.Rf1350Enabled, &c.Rf1350.Enabled)
	if v := getenv(env.Rf1350TestProject); v != "" {
		c.Rf1350.TestProjectNumber = v
	}
	envBool(env.LoyvegarantiEnabled, &c.Loyvegaranti.Enabled)
	if v := getenv(env.LoyvegarantiRecno); v != "" {
		c.Loyvegaranti.ResponsibleEnterpriseRecno = v
	}
	envBool(env.PengetransportenOn, &c.Pengetransporten.Enabled)
	if v := getenv(env.PengetransportenTo); v != "" {
		c.Pengetransporten.ForwardAddresses = splitList(v)
	}
	envBool(env.InnsynOn, &c.Innsyn.Enabled)
	if v := getenv(env.InnsynTo); v != "" {
		c.Innsyn.ForwardAddresses = splitList(v)
	}
	envBool(env.CaseNumberEnabled, &c.CaseNumber.Enabled)
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Order))
	for _, name := range c.Order {
		if !slices.Contains(DefaultOrder, name) {
			return fmt.Errorf("handler_order: %w: %q", ErrUnknownType, name)
		}
		if seen[name] {
			return fmt.Errorf("handler_order: %q listed twice", name)
		}
		seen[name] = true
	}

	if c.IntakeAddress == "" {
		return fmt.Errorf("intake_address required")
	}
	if (enabled(c.Rf1350.Enabled) || enabled(c.Loyvegaranti.Enabled) || enabled(c.CaseNumber.Enabled)) && c.EpostInnCategory == "" {
		return fmt.Errorf("document_category_epost_inn required")
	}
	if enabled(c.Loyvegaranti.Enabled) && c.Loyvegaranti.ResponsibleEnterpriseRecno == "" {
		return fmt.Errorf("loyvegaranti.responsible_enterprise_recno required")
	}
	if enabled(c.Pengetransporten.Enabled) && len(c.Pengetransporten.ForwardAddresses) == 0 {
		return fmt.Errorf("pengetransporten.forward_addresses required")
	}
	if enabled(c.Innsyn.Enabled) && len(c.Innsyn.ForwardAddresses) == 0 {
		return fmt.Errorf("innsyn.forward_addresses required")
	}
	return nil
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

func envBool(name string, dst **bool) {
	if v := getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = &b
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var invoiceKeywords = []string{
	"e-Faktura", "Faktura", "Regning", "Inkasso", "Inkassovarsel", "Purring",
	"Kreditnota", "Debetnota", "Proformafaktura", "Skattefaktura", "Salgsfaktura",
	"Oppgjør", "Skyldig saldo", "Forfalt betaling", "Faktureringsvarsel",
	"Betalingspåminnelse", "Kontoutskrift", "Finansdokument", "Transaksjonsoppføring",
	"Fakturanummer", "Refusjonskrav", "Rentenota", "Betalingspåminning",
	"Bill", "Invoice", "Credit Note", "Debit Note", "Proforma Invoice", "Tax Invoice",
	"Sales Invoice", "Settlement", "Balance Due", "Overdue Payment", "Billing Notice",
	"Payment Reminder", "Account Statement", "Financial Document", "Transaction Record",
	"Invoice Number", "Refund Claim",
}
